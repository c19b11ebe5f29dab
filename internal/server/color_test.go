package server

import (
	"math"
	"regexp"
	"testing"

	"github.com/danmuck/netchat/internal/testutil/testlog"
)

var hexColor = regexp.MustCompile(`^#[0-9A-F]{6}$`)

func TestHueFollowsGoldenRatioSequence(t *testing.T) {
	testlog.Start(t)

	phi := (math.Sqrt(5) - 1) / 2
	for k := 0; k < 50; k++ {
		want := 360 * math.Mod(float64(k)*phi, 1)
		if got := Hue(k); math.Abs(got-want) > 1e-9 {
			t.Fatalf("Hue(%d) = %v, want %v", k, got, want)
		}
		if got := Hue(k); got < 0 || got >= 360 {
			t.Fatalf("Hue(%d) = %v out of range", k, got)
		}
	}
}

func TestColorForIsDeterministicUppercaseHex(t *testing.T) {
	testlog.Start(t)

	if got := ColorFor(0); got != "#D98C8C" {
		t.Fatalf("ColorFor(0) = %q, want #D98C8C", got)
	}
	seen := make(map[string]int)
	for k := 0; k < 10; k++ {
		c := ColorFor(k)
		if !hexColor.MatchString(c) {
			t.Fatalf("ColorFor(%d) = %q is not #RRGGBB", k, c)
		}
		if c != ColorFor(k) {
			t.Fatalf("ColorFor(%d) not stable", k)
		}
		if prev, ok := seen[c]; ok {
			t.Fatalf("ColorFor(%d) repeats ColorFor(%d) = %q", k, prev, c)
		}
		seen[c] = k
	}
}
