package crawler

import (
	"errors"
	"testing"
)

func TestLinkFollowingStopsAtCap(t *testing.T) {
	s := NewLinkFollowing("https://auto.bazos.sk/", 2)

	step := s.Next(nil)
	if !step.Continue || step.Request.URL != "https://auto.bazos.sk/" || step.Request.Index != 1 {
		t.Fatalf("unexpected first step %+v", step)
	}

	step = s.Next(&Outcome{Request: step.Request, Listings: 3, NextURL: "https://auto.bazos.sk/20/"})
	if !step.Continue || step.Request.URL != "https://auto.bazos.sk/20/" || step.Request.Index != 2 {
		t.Fatalf("unexpected second step %+v", step)
	}

	step = s.Next(&Outcome{Request: step.Request, Listings: 2, NextURL: "https://auto.bazos.sk/40/"})
	if step.Continue {
		t.Fatalf("expected stop at cap, got %+v", step)
	}
}

func TestLinkFollowingStopConditions(t *testing.T) {
	first := PageRequest{URL: "https://x.bazos.sk/", Index: 1}
	cases := []struct {
		name string
		last Outcome
	}{
		{"fetch error", Outcome{Request: first, Err: errors.New("timeout"), NextURL: "https://x.bazos.sk/20/"}},
		{"no listings", Outcome{Request: first, NextURL: "https://x.bazos.sk/20/"}},
		{"no next", Outcome{Request: first, Listings: 4}},
		{"self link", Outcome{Request: first, Listings: 4, NextURL: first.URL}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := NewLinkFollowing(first.URL, 0)
			last := tc.last
			if step := s.Next(&last); step.Continue {
				t.Fatalf("expected stop, got %+v", step)
			}
		})
	}
}

func TestLinkFollowingUncappedKeepsGoing(t *testing.T) {
	s := NewLinkFollowing("https://x.bazos.sk/", 0)
	req := s.Next(nil).Request
	for i := 0; i < 50; i++ {
		step := s.Next(&Outcome{Request: req, Listings: 1, NextURL: req.URL + "n/"})
		if !step.Continue {
			t.Fatalf("uncapped run stopped at page %d", req.Index)
		}
		req = step.Request
	}
	if req.Index != 51 {
		t.Fatalf("expected index 51, got %d", req.Index)
	}
}

func TestParameterIncrementContinuesAfterFailedPage(t *testing.T) {
	s := NewParameterIncrement("https://www.mojadm.sk/drogeria?currentPage=1&sort=new", "currentPage", 3)

	step := s.Next(nil)
	if step.Request.URL != "https://www.mojadm.sk/drogeria?currentPage=1&sort=new" {
		t.Fatalf("unexpected page 1 url %q", step.Request.URL)
	}
	step = s.Next(&Outcome{Request: step.Request, Listings: 2})
	if !step.Continue || step.Request.Index != 2 || step.Request.URL != "https://www.mojadm.sk/drogeria?currentPage=2&sort=new" {
		t.Fatalf("unexpected page 2 step %+v", step)
	}
	step = s.Next(&Outcome{Request: step.Request, Err: errors.New("network")})
	if !step.Continue || step.Request.Index != 3 {
		t.Fatalf("expected page 3 after failure, got %+v", step)
	}
	if step = s.Next(&Outcome{Request: step.Request, Listings: 1}); step.Continue {
		t.Fatalf("expected stop at cap, got %+v", step)
	}
}

func TestParameterIncrementStopsOnEmptyFirstPage(t *testing.T) {
	s := NewParameterIncrement("https://www.mojadm.sk/drogeria", "currentPage", 5)
	step := s.Next(nil)
	if step.Request.URL != "https://www.mojadm.sk/drogeria?currentPage=1" {
		t.Fatalf("unexpected url %q", step.Request.URL)
	}
	if next := s.Next(&Outcome{Request: step.Request, Err: errors.New("timeout")}); next.Continue {
		t.Fatalf("expected stop after failed first page, got %+v", next)
	}
}

func TestParameterIncrementTreatsZeroCapAsOne(t *testing.T) {
	s := NewParameterIncrement("https://example.com/list", "", 0)
	step := s.Next(nil)
	if step.Request.URL != "https://example.com/list?page=1" {
		t.Fatalf("unexpected url %q", step.Request.URL)
	}
	if next := s.Next(&Outcome{Request: step.Request, Listings: 9}); next.Continue {
		t.Fatalf("expected single page, got %+v", next)
	}
}

func TestInfiniteScrollSinglePage(t *testing.T) {
	s := NewInfiniteScroll("https://www.mojadm.sk/drogeria", DefaultScrollPolicy())
	if s.Kind() != InfiniteScroll {
		t.Fatalf("unexpected kind %s", s.Kind())
	}
	step := s.Next(nil)
	if !step.Continue || step.Request.Scroll == nil || step.Request.Scroll.MaxAttempts != MaxScrollAttempts {
		t.Fatalf("unexpected first step %+v", step)
	}
	if next := s.Next(&Outcome{Request: step.Request, Listings: 30}); next.Continue {
		t.Fatalf("expected stop after scroll page, got %+v", next)
	}
}

func TestWithPageParam(t *testing.T) {
	cases := []struct {
		raw, want string
	}{
		{"https://a.sk/x", "https://a.sk/x?currentPage=4"},
		{"https://a.sk/x?q=1", "https://a.sk/x?q=1&currentPage=4"},
		{"https://a.sk/x?currentPage=1&q=1", "https://a.sk/x?currentPage=4&q=1"},
		{"https://a.sk/x?q=1&currentPage=9#top", "https://a.sk/x?q=1&currentPage=4#top"},
	}
	for _, tc := range cases {
		if got := WithPageParam(tc.raw, "currentPage", 4); got != tc.want {
			t.Fatalf("WithPageParam(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}
