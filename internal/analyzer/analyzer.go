package analyzer

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fgravato/falcon-rtr/internal/device"
)

// RiskLevel represents a device risk level
type RiskLevel string

const (
	RiskHigh   RiskLevel = "High"
	RiskMedium RiskLevel = "Medium"
	RiskLow    RiskLevel = "Low"
)

// MediumRiskAfter is how long a host may go unseen before it is no longer
// low risk. Past device.StaleAfter it is high risk.
const MediumRiskAfter = 24 * time.Hour

// SecurityStats represents security statistics for devices
type SecurityStats struct {
	RiskLevel       RiskLevel `json:"risk_level"`
	Count           int       `json:"count"`
	Description     string    `json:"description"`
	AffectedDevices []string  `json:"affected_devices,omitempty"`
}

// VersionDistribution represents sensor or OS version distribution
type VersionDistribution struct {
	Version    string  `json:"version"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
	IsCurrent  bool    `json:"is_current,omitempty"`
}

// Analysis represents the complete device analysis
type Analysis struct {
	TotalDevices        int                                     `json:"total_devices"`
	SecurityStats       map[string]map[RiskLevel]*SecurityStats `json:"security_stats"`
	SensorDistribution  []VersionDistribution                   `json:"sensor_distribution"`
	OSDistribution      map[string][]VersionDistribution        `json:"os_distribution"`
	ReducedFunctionMode int                                     `json:"reduced_functionality_mode"`
	Timestamp           time.Time                               `json:"timestamp"`
}

// Lister supplies the devices to analyze
type Lister interface {
	ListDevices(ctx context.Context) ([]device.Device, error)
}

// Analyzer handles device analysis
type Analyzer struct {
	devices Lister
	now     func() time.Time
}

// NewAnalyzer creates a new analyzer
func NewAnalyzer(devices Lister) *Analyzer {
	return &Analyzer{
		devices: devices,
		now:     time.Now,
	}
}

// AnalyzeDevices groups hosts by platform and last-seen risk, and summarizes
// sensor and OS versions.
func (a *Analyzer) AnalyzeDevices(ctx context.Context) (*Analysis, error) {
	devices, err := a.devices.ListDevices(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}

	now := a.now().UTC()
	analysis := &Analysis{
		TotalDevices:   len(devices),
		SecurityStats:  make(map[string]map[RiskLevel]*SecurityStats),
		OSDistribution: make(map[string][]VersionDistribution),
		Timestamp:      now,
	}

	sensors := make(map[string]int)
	osVersions := make(map[string]map[string]int)

	for _, d := range devices {
		platform := d.PlatformName
		if platform == "" {
			platform = "unknown"
		}

		stats, ok := analysis.SecurityStats[platform]
		if !ok {
			stats = initSecurityStats()
			analysis.SecurityStats[platform] = stats
		}
		risk := analyzeLastSeenRisk(d, now)
		stats[risk].Count++
		stats[risk].AffectedDevices = append(stats[risk].AffectedDevices, label(d))

		if d.AgentVersion != "" {
			sensors[d.AgentVersion]++
		}
		if d.OSVersion != "" {
			if osVersions[platform] == nil {
				osVersions[platform] = make(map[string]int)
			}
			osVersions[platform][d.OSVersion]++
		}
		if strings.EqualFold(d.ReducedFunctMode, "yes") {
			analysis.ReducedFunctionMode++
		}
	}

	analysis.SensorDistribution = analyzeSensorDistribution(sensors)
	for platform, versions := range osVersions {
		analysis.OSDistribution[platform] = analyzeOSDistribution(versions)
	}

	return analysis, nil
}

func initSecurityStats() map[RiskLevel]*SecurityStats {
	return map[RiskLevel]*SecurityStats{
		RiskHigh: {
			RiskLevel:   RiskHigh,
			Description: "Not seen for over a week or never reported",
		},
		RiskMedium: {
			RiskLevel:   RiskMedium,
			Description: "Not seen in the last 24 hours",
		},
		RiskLow: {
			RiskLevel:   RiskLow,
			Description: "Seen in the last 24 hours",
		},
	}
}

func analyzeLastSeenRisk(d device.Device, now time.Time) RiskLevel {
	if d.IsStale(now) {
		return RiskHigh
	}
	if seen, _ := d.LastSeenAt(); now.Sub(seen) > MediumRiskAfter {
		return RiskMedium
	}
	return RiskLow
}

func label(d device.Device) string {
	id := d.DeviceID
	if len(id) > 8 {
		id = id[:8]
	}
	if d.Hostname == "" {
		return id
	}
	return fmt.Sprintf("%s (%s)", d.Hostname, id)
}

// analyzeSensorDistribution sorts sensor builds newest first. A build is
// current when it shares major.minor with the newest build observed.
func analyzeSensorDistribution(versions map[string]int) []VersionDistribution {
	distribution := distribute(versions)

	sort.Slice(distribution, func(i, j int) bool {
		return compareVersions(distribution[i].Version, distribution[j].Version) > 0
	})

	if len(distribution) > 0 {
		newest := majorMinor(distribution[0].Version)
		for i := range distribution {
			distribution[i].IsCurrent = majorMinor(distribution[i].Version) == newest
		}
	}
	return distribution
}

// analyzeOSDistribution sorts OS versions by host count, then name.
func analyzeOSDistribution(versions map[string]int) []VersionDistribution {
	distribution := distribute(versions)

	sort.Slice(distribution, func(i, j int) bool {
		if distribution[i].Count != distribution[j].Count {
			return distribution[i].Count > distribution[j].Count
		}
		return distribution[i].Version < distribution[j].Version
	})
	return distribution
}

func distribute(versions map[string]int) []VersionDistribution {
	total := 0
	for _, count := range versions {
		total += count
	}

	distribution := make([]VersionDistribution, 0, len(versions))
	for version, count := range versions {
		distribution = append(distribution, VersionDistribution{
			Version:    version,
			Count:      count,
			Percentage: float64(count) / float64(total) * 100,
		})
	}
	return distribution
}

func majorMinor(version string) string {
	parts := strings.SplitN(version, ".", 3)
	if len(parts) < 2 {
		return version
	}
	return parts[0] + "." + parts[1]
}

// compareVersions compares dotted versions numerically, falling back to a
// string comparison for non-numeric components.
func compareVersions(a, b string) int {
	pa := strings.Split(a, ".")
	pb := strings.Split(b, ".")
	for i := 0; i < len(pa) && i < len(pb); i++ {
		na, errA := strconv.Atoi(pa[i])
		nb, errB := strconv.Atoi(pb[i])
		if errA != nil || errB != nil {
			if c := strings.Compare(pa[i], pb[i]); c != 0 {
				return c
			}
			continue
		}
		if na != nb {
			if na > nb {
				return 1
			}
			return -1
		}
	}
	switch {
	case len(pa) > len(pb):
		return 1
	case len(pa) < len(pb):
		return -1
	}
	return 0
}
