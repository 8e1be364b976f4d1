package models

import (
	"testing"

	"github.com/google/uuid"
)

func TestSlideRewarderRing(t *testing.T) {
	a := uuid.New()
	b := uuid.New()
	c := uuid.New()
	d := uuid.New()

	issue := &Issue{}

	issue.SlideRewarderRing(a)
	if issue.LastRewarderID == nil || *issue.LastRewarderID != a {
		t.Fatalf("expected a as last rewarder")
	}
	if issue.SecondLastRewarderID != nil || issue.ThirdLastRewarderID != nil {
		t.Fatalf("expected empty trailing slots after first pledge")
	}

	// Consecutive pledges from the same author don't move the ring.
	issue.SlideRewarderRing(a)
	if issue.SecondLastRewarderID != nil {
		t.Fatalf("expected repeat pledge to leave the ring unchanged")
	}

	issue.SlideRewarderRing(b)
	issue.SlideRewarderRing(c)
	if *issue.LastRewarderID != c || *issue.SecondLastRewarderID != b || *issue.ThirdLastRewarderID != a {
		t.Fatalf("expected ring [c b a], got [%v %v %v]",
			issue.LastRewarderID, issue.SecondLastRewarderID, issue.ThirdLastRewarderID)
	}

	// A fourth distinct author pushes the oldest out.
	issue.SlideRewarderRing(d)
	if *issue.LastRewarderID != d || *issue.SecondLastRewarderID != c || *issue.ThirdLastRewarderID != b {
		t.Fatalf("expected ring [d c b], got [%v %v %v]",
			issue.LastRewarderID, issue.SecondLastRewarderID, issue.ThirdLastRewarderID)
	}

	// An author in the middle slot pledging again moves to the front
	// without appearing twice.
	issue.SlideRewarderRing(c)
	if *issue.LastRewarderID != c || *issue.SecondLastRewarderID != d || *issue.ThirdLastRewarderID != b {
		t.Fatalf("expected ring [c d b], got [%v %v %v]",
			issue.LastRewarderID, issue.SecondLastRewarderID, issue.ThirdLastRewarderID)
	}

	// Same for an author in the third slot.
	issue.SlideRewarderRing(b)
	if *issue.LastRewarderID != b || *issue.SecondLastRewarderID != c || *issue.ThirdLastRewarderID != d {
		t.Fatalf("expected ring [b c d], got [%v %v %v]",
			issue.LastRewarderID, issue.SecondLastRewarderID, issue.ThirdLastRewarderID)
	}

	// The shortest duplicate pattern stays distinct as well.
	fresh := &Issue{}
	fresh.SlideRewarderRing(a)
	fresh.SlideRewarderRing(b)
	fresh.SlideRewarderRing(a)
	if *fresh.LastRewarderID != a || *fresh.SecondLastRewarderID != b || fresh.ThirdLastRewarderID != nil {
		t.Fatalf("expected ring [a b _], got [%v %v %v]",
			fresh.LastRewarderID, fresh.SecondLastRewarderID, fresh.ThirdLastRewarderID)
	}
}
