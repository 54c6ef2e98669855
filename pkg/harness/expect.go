package harness

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
)

// ExpectCount waits until the number of elements matching q equals want.
// rendering is asynchronous relative to action dispatch, so the check retries
// within the budget instead of evaluating once.
func (s *Session) ExpectCount(q Query, want int, r Retry) error {
	loc := q.Resolve(s.page)
	probe := func() (bool, string, error) {
		count, err := loc.Count()
		if err != nil {
			return false, "", err
		}
		return count == want, strconv.Itoa(count), nil
	}
	return s.expect(q.String(), fmt.Sprintf("count %d", want), probe, r)
}

// ExpectText waits until the first element matching q has exactly the given
// text content.
func (s *Session) ExpectText(q Query, want string, r Retry) error {
	loc := q.Resolve(s.page)
	probe := func() (bool, string, error) {
		text, err := loc.First().TextContent()
		if err != nil {
			return false, "", err
		}
		return text == want, fmt.Sprintf("%q", text), nil
	}
	return s.expect(q.String(), fmt.Sprintf("text %q", want), probe, r)
}

// ExpectTextMatch waits until the first element matching q has text content
// matching re.
func (s *Session) ExpectTextMatch(q Query, re *regexp.Regexp, r Retry) error {
	loc := q.Resolve(s.page)
	probe := func() (bool, string, error) {
		text, err := loc.First().TextContent()
		if err != nil {
			return false, "", err
		}
		return re.MatchString(text), fmt.Sprintf("%q", text), nil
	}
	return s.expect(q.String(), "text matching /"+re.String()+"/", probe, r)
}

// ExpectVisible waits until the first element matching q is visible.
func (s *Session) ExpectVisible(q Query, r Retry) error {
	loc := q.Resolve(s.page)
	probe := func() (bool, string, error) {
		visible, err := loc.First().IsVisible()
		if err != nil {
			return false, "", err
		}
		if visible {
			return true, "visible", nil
		}
		return false, "hidden", nil
	}
	return s.expect(q.String(), "visible", probe, r)
}

// ExpectTextCount waits until the literal text occurs in exactly want
// elements anywhere on the page. playwright's text matching returns the
// smallest elements containing the text, so nesting does not inflate counts.
func (s *Session) ExpectTextCount(text string, want int, r Retry) error {
	loc := s.page.GetByText(text)
	probe := func() (bool, string, error) {
		count, err := loc.Count()
		if err != nil {
			return false, "", err
		}
		return count == want, strconv.Itoa(count), nil
	}
	return s.expect(fmt.Sprintf("text %q anywhere", text), fmt.Sprintf("%d occurrences", want), probe, r)
}

// expect runs probe within the retry budget and converts a miss into an
// AssertionError carrying the last observed value.
func (s *Session) expect(query, expected string, probe probeFunc, r Retry) error {
	actual, ok := await(context.Background(), r, probe)
	if ok {
		return nil
	}
	if actual == "" {
		actual = "(nothing observed)"
	}
	return &AssertionError{Query: query, Expected: expected, Actual: actual}
}
