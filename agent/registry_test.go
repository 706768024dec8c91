package agent

import "testing"

func TestRegisterValidation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{ID: "writer", Name: "Writer", Description: "writes"}, false},
		{"kebab id", Config{ID: "data-analyst", Name: "Analyst", Description: "analyzes"}, false},
		{"empty id", Config{Name: "X", Description: "y"}, true},
		{"uppercase id", Config{ID: "Writer", Name: "Writer", Description: "writes"}, true},
		{"underscore id", Config{ID: "data_analyst", Name: "Analyst", Description: "analyzes"}, true},
		{"missing description", Config{ID: "writer", Name: "Writer"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewRegistry().Register(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("Register(%+v) error = %v, wantErr %v", tt.cfg, err, tt.wantErr)
			}
		})
	}
}

func TestRegisterDuplicate(t *testing.T) {
	reg := NewRegistry()
	cfg := Config{ID: "writer", Name: "Writer", Description: "writes"}

	if err := reg.Register(cfg); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}
	if err := reg.Register(cfg); err == nil {
		t.Fatal("expected duplicate registration error")
	}
}

func TestListExcludesRouter(t *testing.T) {
	reg, err := WithDefaults()
	if err != nil {
		t.Fatalf("WithDefaults failed: %v", err)
	}

	if _, ok := reg.Router(); !ok {
		t.Fatal("expected router agent")
	}
	for _, cfg := range reg.List() {
		if cfg.ID == RouterID {
			t.Error("router must not appear in the candidate list")
		}
	}
	if len(reg.List()) != 2 {
		t.Errorf("expected 2 routable agents, got %d", len(reg.List()))
	}
}

func TestListSortedByID(t *testing.T) {
	reg := NewRegistry()
	for _, id := range []string{"zeta", "alpha", "mid"} {
		reg.Register(Config{ID: id, Name: id, Description: "d"})
	}

	list := reg.List()
	if list[0].ID != "alpha" || list[1].ID != "mid" || list[2].ID != "zeta" {
		t.Errorf("expected sorted list, got %+v", list)
	}
}

func TestStepBudget(t *testing.T) {
	if (Config{}).StepBudget() != DefaultMaxSteps {
		t.Errorf("zero MaxSteps should fall back to default")
	}
	if (Config{MaxSteps: 3}).StepBudget() != 3 {
		t.Errorf("explicit MaxSteps should win")
	}
}
