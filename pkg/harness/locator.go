package harness

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/playwright-community/playwright-go"
)

// Query describes how to find elements on a page. construction is pure, the
// query is evaluated only when an action or expectation consumes it, so it
// stays valid across re-renders that replace the underlying DOM nodes.
// queries match by identity-bearing attributes (test id, text), never by
// raw node handles. zero matches is an empty result, not an error.
type Query struct {
	steps []queryStep
}

type stepKind int

const (
	stepTestID stepKind = iota
	stepText
	stepCSS
	stepNth
	stepHasText
)

type queryStep struct {
	kind  stepKind
	value any // string or *regexp.Regexp for test-id/text/has-text, string for css
	exact bool
	index int
}

// TestID starts a query matching elements by their data-testid attribute.
// id can be a string for exact match or *regexp.Regexp for pattern match
// (e.g. selected-state suffixes like "baseButton-segments(Active)?").
func TestID(id any) Query {
	return Query{steps: []queryStep{{kind: stepTestID, value: id}}}
}

// Text starts a query matching elements containing the given text.
// v can be a string (substring match) or *regexp.Regexp.
func Text(v any) Query {
	return Query{steps: []queryStep{{kind: stepText, value: v}}}
}

// TextExact starts a query matching elements whose text equals s exactly.
func TextExact(s string) Query {
	return Query{steps: []queryStep{{kind: stepText, value: s, exact: true}}}
}

// CSS starts a query using a raw CSS selector, for elements that expose no
// test id (e.g. third-party canvas containers).
func CSS(selector string) Query {
	return Query{steps: []queryStep{{kind: stepCSS, value: selector}}}
}

// TestID narrows the query to descendants with the given test id.
func (q Query) TestID(id any) Query {
	return q.append(queryStep{kind: stepTestID, value: id})
}

// Text narrows the query to descendants containing the given text.
func (q Query) Text(v any) Query {
	return q.append(queryStep{kind: stepText, value: v})
}

// CSS narrows the query to descendants matching a CSS selector.
func (q Query) CSS(selector string) Query {
	return q.append(queryStep{kind: stepCSS, value: selector})
}

// HasText filters current matches to those containing the given text.
// v can be a string or *regexp.Regexp. unlike Text, this keeps matching the
// current elements rather than descending into them.
func (q Query) HasText(v any) Query {
	return q.append(queryStep{kind: stepHasText, value: v})
}

// Nth selects the i-th match (0-based, DOM order) of the query so far.
func (q Query) Nth(i int) Query {
	return q.append(queryStep{kind: stepNth, index: i})
}

// First selects the first match of the query so far.
func (q Query) First() Query {
	return q.Nth(0)
}

// append returns a copy with the step added; the receiver is never mutated
// so partially built queries can be shared between scenarios.
func (q Query) append(s queryStep) Query {
	steps := make([]queryStep, len(q.steps), len(q.steps)+1)
	copy(steps, q.steps)
	return Query{steps: append(steps, s)}
}

// Resolve evaluates the query against a page and returns a playwright locator.
// the locator itself stays lazy: playwright re-resolves it on each use.
func (q Query) Resolve(page playwright.Page) playwright.Locator {
	var loc playwright.Locator
	for _, s := range q.steps {
		loc = applyStep(page, loc, s)
	}
	if loc == nil {
		// empty query matches the document root, callers get a stable target
		loc = page.Locator(":root")
	}
	return loc
}

// applyStep applies one step either to the page (first step) or to the
// locator built so far.
func applyStep(page playwright.Page, loc playwright.Locator, s queryStep) playwright.Locator {
	switch s.kind {
	case stepTestID:
		if loc == nil {
			return page.GetByTestId(s.value)
		}
		return loc.GetByTestId(s.value)
	case stepText:
		opts := playwright.LocatorGetByTextOptions{}
		if s.exact {
			opts.Exact = playwright.Bool(true)
		}
		if loc == nil {
			return page.GetByText(s.value, playwright.PageGetByTextOptions{Exact: opts.Exact})
		}
		return loc.GetByText(s.value, opts)
	case stepCSS:
		sel, _ := s.value.(string)
		if loc == nil {
			return page.Locator(sel)
		}
		return loc.Locator(sel)
	case stepHasText:
		if loc == nil {
			// has-text with no base narrows nothing, match any element with the text
			return page.GetByText(s.value)
		}
		return loc.Filter(playwright.LocatorFilterOptions{HasText: s.value})
	case stepNth:
		if loc == nil {
			return page.Locator(":root")
		}
		return loc.Nth(s.index)
	}
	return loc
}

// String renders the query for diagnostics, e.g.
// `testid=stButtonGroup >> nth=0 >> has-text="Foobar"`.
func (q Query) String() string {
	if len(q.steps) == 0 {
		return ":root"
	}
	parts := make([]string, 0, len(q.steps))
	for _, s := range q.steps {
		switch s.kind {
		case stepTestID:
			parts = append(parts, "testid="+describeMatcher(s.value))
		case stepText:
			if s.exact {
				parts = append(parts, "text-exact="+describeMatcher(s.value))
			} else {
				parts = append(parts, "text="+describeMatcher(s.value))
			}
		case stepCSS:
			parts = append(parts, fmt.Sprintf("css=%v", s.value))
		case stepHasText:
			parts = append(parts, "has-text="+describeMatcher(s.value))
		case stepNth:
			parts = append(parts, fmt.Sprintf("nth=%d", s.index))
		}
	}
	return strings.Join(parts, " >> ")
}

// describeMatcher renders a string or regexp matcher for diagnostics.
func describeMatcher(v any) string {
	switch m := v.(type) {
	case string:
		return fmt.Sprintf("%q", m)
	case *regexp.Regexp:
		return "/" + m.String() + "/"
	default:
		return fmt.Sprintf("%v", v)
	}
}
