// Package search ranks listings against a free-text keyword query.
//
// The index is built once per query over the candidate listings and is
// read-only afterwards, so it is safe for concurrent use. Scoring is the
// Jaccard similarity between query and document token sets, plus a bonus
// for the share of query tokens found in the title. Ties keep the caller's
// order, which for listings is newest first.
package search

import (
	"regexp"
	"sort"
	"strings"
)

// Document is one rankable listing. Title matches weigh more than matches in
// Body.
type Document struct {
	ID    string
	Title string
	Body  string
}

// Result is a matched document id with its score.
type Result struct {
	ID    string
	Score float64
}

// Index ranks documents for a query.
type Index interface {
	// TopK returns up to k matches, best first. k <= 0 returns every match.
	TopK(query string, k int) []Result
}

// Option configures NewIndex.
type Option func(*options)

type options struct {
	stop       set
	titleBoost float64
	maxDocs    int
}

// DefaultStopwords are words that say nothing about what food is on offer.
var DefaultStopwords = []string{"a", "an", "and", "the", "of", "for", "with", "in", "on", "to", "fresh"}

// DefaultTitleBoost is added, scaled by the fraction of query tokens found in
// the title, on top of the Jaccard score.
const DefaultTitleBoost = 0.5

// WithStopwords drops the given words from documents and queries.
func WithStopwords(words []string) Option {
	return func(o *options) {
		s := set{}
		for _, w := range words {
			if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
				s[w] = struct{}{}
			}
		}
		if len(s) > 0 {
			o.stop = s
		}
	}
}

// WithTitleBoost overrides DefaultTitleBoost. Negative values are ignored;
// zero ranks on body and title alike.
func WithTitleBoost(b float64) Option {
	return func(o *options) {
		if b >= 0 {
			o.titleBoost = b
		}
	}
}

// WithMaxDocs indexes at most n documents (the first n with any token).
func WithMaxDocs(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxDocs = n
		}
	}
}

type set map[string]struct{}

func (s set) has(w string) bool {
	_, ok := s[w]
	return ok
}

// shared counts members of s that are also in o.
func (s set) shared(o set) int {
	small, big := s, o
	if len(small) > len(big) {
		small, big = big, small
	}
	n := 0
	for w := range small {
		if big.has(w) {
			n++
		}
	}
	return n
}

type entry struct {
	id    string
	all   set
	title set
	pos   int
}

type index struct {
	opt     options
	entries []entry
}

// NewIndex builds an Index over docs. Documents with no tokens are skipped.
func NewIndex(docs []Document, opts ...Option) Index {
	o := options{titleBoost: DefaultTitleBoost}
	for _, fn := range opts {
		fn(&o)
	}
	entries := make([]entry, 0, len(docs))
	for i, d := range docs {
		title := tokens(d.Title, o.stop)
		all := tokens(d.Body, o.stop)
		for w := range title {
			all[w] = struct{}{}
		}
		if len(all) == 0 {
			continue
		}
		entries = append(entries, entry{id: d.ID, all: all, title: title, pos: i})
		if o.maxDocs > 0 && len(entries) == o.maxDocs {
			break
		}
	}
	return &index{opt: o, entries: entries}
}

func (ix *index) TopK(query string, k int) []Result {
	q := tokens(query, ix.opt.stop)
	if len(q) == 0 || len(ix.entries) == 0 {
		return nil
	}

	type hit struct {
		Result
		pos int
	}
	var hits []hit
	for _, e := range ix.entries {
		inter := q.shared(e.all)
		if inter == 0 {
			continue
		}
		score := float64(inter) / float64(len(q)+len(e.all)-inter)
		score += ix.opt.titleBoost * float64(q.shared(e.title)) / float64(len(q))
		hits = append(hits, hit{Result{e.id, score}, e.pos})
	}
	if len(hits) == 0 {
		return nil
	}

	sort.SliceStable(hits, func(a, b int) bool {
		if hits[a].Score != hits[b].Score {
			return hits[a].Score > hits[b].Score
		}
		return hits[a].pos < hits[b].pos
	})

	if k <= 0 || k > len(hits) {
		k = len(hits)
	}
	out := make([]Result, k)
	for i := range out {
		out[i] = hits[i].Result
	}
	return out
}

var wordRE = regexp.MustCompile(`\p{L}+\p{N}*|\p{N}+`)

// tokens lower-cases s and returns its distinct words minus stop words.
func tokens(s string, stop set) set {
	out := set{}
	for _, w := range wordRE.FindAllString(strings.ToLower(s), -1) {
		if !stop.has(w) {
			out[w] = struct{}{}
		}
	}
	return out
}
