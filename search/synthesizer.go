// Step synthesis pipeline: one search request in, an ordered sequence of
// progress deltas out.
//
// Information Hiding:
// - Topic derivation and related-query generation hidden
// - Analysis point templates hidden
// - Provider failure translation hidden

package search

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/marendel/skein/delta"
	"github.com/marendel/skein/model"
)

// minQueryLength is the provider's minimum accepted query length.
// Shorter queries are right-padded with spaces; the padded form, not the
// original, is what every downstream step references.
const minQueryLength = 5

// analysisThreshold is the raw result count above which an analysis step
// is synthesized.
const analysisThreshold = 2

// maxRelatedQueries bounds the related queries on the investigation step.
const maxRelatedQueries = 3

// maxInvestigationSources bounds the distinct domains on the
// investigation step.
const maxInvestigationSources = 8

// excerptLength is the approximate size of a per-source content excerpt.
const excerptLength = 120

// Interrogative and auxiliary words stripped when deriving the main topic.
var stopWords = map[string]struct{}{
	"what": {}, "how": {}, "when": {}, "where": {}, "why": {},
	"is": {}, "are": {}, "can": {}, "do": {}, "does": {}, "did": {},
}

// Synthesizer turns one search request into progress deltas on a channel.
type Synthesizer struct {
	provider Provider
}

// NewSynthesizer creates a synthesizer backed by the given provider.
func NewSynthesizer(provider Provider) *Synthesizer {
	return &Synthesizer{provider: provider}
}

// PadQuery right-pads a query with spaces to the provider's minimum
// length, counted in runes so multibyte queries pad correctly.
// Queries already long enough are returned unchanged.
func PadQuery(query string) string {
	n := utf8.RuneCountInString(query)
	if n >= minQueryLength {
		return query
	}
	return query + strings.Repeat(" ", minQueryLength-n)
}

// Run executes the synthesis pipeline, appending deltas to ch in order.
// On provider failure it appends a search-error delta and returns the
// error without a completed status; the turn itself survives.
func (s *Synthesizer) Run(ctx context.Context, ch *delta.Channel, req Request) (*model.SearchResults, error) {
	padded := PadQuery(req.Query)

	ch.Append(delta.StatusDelta{Status: model.StatusStarting})
	ch.Append(delta.QueryDelta{Query: padded})

	topic := mainTopic(padded)
	researchTitle := "Researching " + topic

	ch.Append(delta.StepDelta{Step: model.SearchStep{
		Title:     researchTitle,
		Kind:      model.StepSearch,
		Completed: false,
		Query:     padded,
	}})

	providerReq := req
	providerReq.Query = padded
	resp, err := s.provider.Search(ctx, providerReq)
	if err != nil {
		ch.Append(delta.ErrorDelta{Message: fmt.Sprintf("search failed: %v", err)})
		return nil, err
	}

	domains := distinctDomains(resp.Results)

	// Same title as the opening step: the consumer overwrites by title
	// instead of appending a duplicate.
	ch.Append(delta.StepDelta{Step: model.SearchStep{
		Title:     researchTitle,
		Kind:      model.StepSearch,
		Completed: true,
		Query:     padded,
		Sources:   domains,
		Results:   resp.Results,
	}})

	ch.Append(delta.StepDelta{Step: model.SearchStep{
		Title:          "Investigating additional aspects of " + topic,
		Kind:           model.StepReading,
		Completed:      true,
		RelatedQueries: relatedQueries(topic, req.Query),
		Sources:        capped(domains, maxInvestigationSources),
		SourceDetails:  sourceDetails(resp.Results, maxInvestigationSources),
	}})

	if len(resp.Results) > analysisThreshold {
		ch.Append(delta.StepDelta{Step: model.SearchStep{
			Title:          "Analyzing findings on " + topic,
			Kind:           model.StepAnalysis,
			Completed:      true,
			AnalysisPoints: analysisPoints(resp.Results, domains),
		}})
	}

	ch.Append(delta.StatusDelta{Status: model.StatusCompleted})

	results := &model.SearchResults{
		Query:           padded,
		Results:         resp.Results,
		NumberOfResults: len(resp.Results),
	}
	if results.Results == nil {
		results.Results = []model.ResultItem{}
	}
	return results, nil
}

// mainTopic strips interrogative and auxiliary stop-words from the query.
// Falls back to the trimmed query when nothing survives.
func mainTopic(query string) string {
	var kept []string
	for _, word := range strings.Fields(query) {
		if _, stop := stopWords[strings.ToLower(word)]; stop {
			continue
		}
		kept = append(kept, word)
	}
	if len(kept) == 0 {
		return strings.TrimSpace(query)
	}
	return strings.Join(kept, " ")
}

// relatedQueries generates up to three deterministic follow-up queries,
// dropping any equal to or contained in the original query.
func relatedQueries(topic, original string) []string {
	candidates := []string{
		topic + " latest developments",
		topic + " analysis",
		topic + " trends",
	}

	lowerOriginal := strings.ToLower(original)
	var out []string
	for _, c := range candidates {
		if strings.Contains(lowerOriginal, strings.ToLower(c)) {
			continue
		}
		out = append(out, c)
		if len(out) == maxRelatedQueries {
			break
		}
	}
	return out
}

// distinctDomains collects the distinct result domains in first-seen order.
func distinctDomains(results []model.ResultItem) []string {
	seen := make(map[string]struct{})
	var domains []string
	for _, r := range results {
		d := domainOf(r.URL)
		if d == "" {
			continue
		}
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		domains = append(domains, d)
	}
	return domains
}

// domainOf extracts a lower-cased, www-stripped hostname label from a URL.
func domainOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}

// sourceDetails builds one detail per distinct domain, up to limit, with
// a short content excerpt.
func sourceDetails(results []model.ResultItem, limit int) []model.SourceDetail {
	seen := make(map[string]struct{})
	var details []model.SourceDetail
	for _, r := range results {
		d := domainOf(r.URL)
		if d == "" {
			continue
		}
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		details = append(details, model.SourceDetail{
			URL:     r.URL,
			Domain:  d,
			Title:   r.Title,
			Summary: excerpt(r.Content),
		})
		if len(details) == limit {
			break
		}
	}
	return details
}

// excerpt cuts on a rune boundary so multibyte content never yields
// invalid UTF-8.
func excerpt(content string) string {
	runes := []rune(content)
	if len(runes) <= excerptLength {
		return content
	}
	return string(runes[:excerptLength]) + "..."
}

func capped(items []string, limit int) []string {
	if len(items) <= limit {
		return items
	}
	return items[:limit]
}

// analysisPoints synthesizes exactly three fixed-template points from the
// result set, each citing a different slice of the source domains.
func analysisPoints(results []model.ResultItem, domains []string) []model.AnalysisPoint {
	topics := topTopics(results, 5)
	topicSummary := "the queried subject"
	if len(topics) > 0 {
		topicSummary = strings.Join(topics, ", ")
	}

	third := (len(domains) + 2) / 3
	slice := func(i int) []string {
		lo := i * third
		if lo >= len(domains) {
			return nil
		}
		hi := lo + third
		if hi > len(domains) {
			hi = len(domains)
		}
		return domains[lo:hi]
	}

	return []model.AnalysisPoint{
		{
			Title:   "Key Findings",
			Content: fmt.Sprintf("Across %d results the recurring themes are %s.", len(results), topicSummary),
			Sources: slice(0),
		},
		{
			Title:   "Data Synthesis",
			Content: fmt.Sprintf("Coverage spans %d distinct sources with convergent reporting on %s.", len(domains), topicSummary),
			Sources: slice(1),
		},
		{
			Title:   "Content Analysis",
			Content: fmt.Sprintf("Source material emphasizes %s with varying depth per outlet.", topicSummary),
			Sources: slice(2),
		},
	}
}

// topTopics extracts capitalized words longer than 5 characters from
// result content and ranks them by frequency. Ties break alphabetically
// so the ranking is deterministic.
func topTopics(results []model.ResultItem, limit int) []string {
	freq := make(map[string]int)
	for _, r := range results {
		for _, word := range strings.FieldsFunc(r.Content, func(c rune) bool {
			return !unicode.IsLetter(c)
		}) {
			if len(word) <= 5 {
				continue
			}
			runes := []rune(word)
			if !unicode.IsUpper(runes[0]) {
				continue
			}
			freq[word]++
		}
	}

	words := make([]string, 0, len(freq))
	for w := range freq {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if freq[words[i]] != freq[words[j]] {
			return freq[words[i]] > freq[words[j]]
		}
		return words[i] < words[j]
	})

	if len(words) > limit {
		words = words[:limit]
	}
	return words
}
