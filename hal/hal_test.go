package hal

import (
	"testing"
)

func TestBusWidth_String(t *testing.T) {
	tests := []struct {
		width    BusWidth
		expected string
	}{
		{BusWidth1, "1-bit"},
		{BusWidth4, "4-bit"},
		{BusWidth8, "8-bit"},
		{BusWidth(2), "Unknown Width (2)"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.width.String(); got != tt.expected {
				t.Errorf("BusWidth(%d).String() = %q, want %q", tt.width, got, tt.expected)
			}
		})
	}
}

func TestTiming_String(t *testing.T) {
	tests := []struct {
		timing   Timing
		expected string
	}{
		{TimingNone, "None"},
		{TimingSDHS25, "SD HS25"},
		{TimingUHSSDR82, "UHS SDR82"},
		{TimingUHSSDR104, "UHS SDR104"},
		{TimingMMCHS52, "MMC HS52"},
		{TimingMMCHS200, "MMC HS200"},
		{TimingMMCHS400, "MMC HS400"},
		{Timing(200), "Unknown Timing (200)"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.timing.String(); got != tt.expected {
				t.Errorf("Timing(%d).String() = %q, want %q", tt.timing, got, tt.expected)
			}
		})
	}
}

func TestTiming_IsUHS(t *testing.T) {
	uhs := map[Timing]bool{
		TimingNone:      false,
		TimingSDHS25:    false,
		TimingUHSSDR82:  true,
		TimingUHSSDR104: true,
		TimingMMCHS52:   false,
		TimingMMCHS200:  true,
		TimingMMCHS400:  true,
	}

	for timing, want := range uhs {
		if got := timing.IsUHS(); got != want {
			t.Errorf("%v.IsUHS() = %v, want %v", timing, got, want)
		}
	}
}

func TestTier_String(t *testing.T) {
	fail := Tier{Name: "INIT_FAIL"}
	if got := fail.String(); got != "INIT_FAIL" {
		t.Errorf("sentinel Tier.String() = %q, want %q", got, "INIT_FAIL")
	}

	tier := Tier{Name: "UHS_SDR104", Width: BusWidth4, Timing: TimingUHSSDR104}
	want := "UHS_SDR104 (4-bit, UHS SDR104)"
	if got := tier.String(); got != want {
		t.Errorf("Tier.String() = %q, want %q", got, want)
	}
}

func TestPhysicalPartition_String(t *testing.T) {
	tests := []struct {
		part     PhysicalPartition
		expected string
	}{
		{PartitionUser, "USER"},
		{PartitionBoot0, "BOOT0"},
		{PartitionBoot1, "BOOT1"},
		{PartitionRPMB, "RPMB"},
		{PhysicalPartition(9), "Unknown Partition (9)"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.part.String(); got != tt.expected {
				t.Errorf("PhysicalPartition(%d).String() = %q, want %q", tt.part, got, tt.expected)
			}
		})
	}
}
