package storage

import (
	"testing"

	"github.com/ardnew/softmmc/hal"
)

func TestTierTables(t *testing.T) {
	tables := map[string][]hal.Tier{
		"SD":   SDTiers,
		"eMMC": EMMCTiers,
	}

	for name, tiers := range tables {
		t.Run(name, func(t *testing.T) {
			if tiers[ModeInitFail].Name != "INIT_FAIL" || tiers[ModeInitFail].Timing != hal.TimingNone {
				t.Errorf("mode 0 = %v, want INIT_FAIL sentinel", tiers[ModeInitFail])
			}

			// Capability never decreases going up the ladder
			for m := 2; m < len(tiers); m++ {
				lo, hi := tiers[m-1], tiers[m]
				if hi.Timing < lo.Timing || (hi.Timing == lo.Timing && hi.Width <= lo.Width) {
					t.Errorf("tier %s is not above %s", hi, lo)
				}
			}
		})
	}
}

func TestTierNames(t *testing.T) {
	tests := []struct {
		tier hal.Tier
		want string
	}{
		{SDTiers[SDUHSSDR104], "UHS_SDR104 (4-bit, UHS SDR104)"},
		{SDTiers[SD1BitHS25], "1BIT_HS25 (1-bit, SD HS25)"},
		{EMMCTiers[EMMCHS400], "HS400 (8-bit, MMC HS400)"},
		{EMMCTiers[EMMC8BitHS52], "8BIT_HS52 (8-bit, MMC HS52)"},
		{EMMCTiers[ModeInitFail], "INIT_FAIL"},
	}

	for _, tt := range tests {
		if got := tt.tier.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateFresh, "Fresh"},
		{StateProbing, "Probing"},
		{StateReady, "Ready"},
		{StateMounted, "Mounted"},
		{StateEnded, "Ended"},
		{StateFailed, "Failed"},
		{State(42), "Unknown State (42)"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.state.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestKind_String(t *testing.T) {
	if KindSD.String() != "SD" || KindEMMC.String() != "eMMC" {
		t.Errorf("Kind strings = %q, %q", KindSD, KindEMMC)
	}
	if got := Kind(9).String(); got != "Unknown Kind (9)" {
		t.Errorf("Kind(9).String() = %q", got)
	}
}
