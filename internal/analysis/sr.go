package analysis

import "sort"

// SRLevel is a support or resistance level built from clustered swing
// extrema. Quality grows with the number of touches.
type SRLevel struct {
	Price   float64
	Low     float64
	High    float64
	Touches int
	Quality float64 // 0-100
}

// SRDetector clusters swing levels into support/resistance zones.
type SRDetector struct {
	clusterPercent float64
}

// NewSRDetector creates a new S/R detector. clusterPercent is the price
// proximity (in percent) under which swing levels merge.
func NewSRDetector(clusterPercent float64) *SRDetector {
	if clusterPercent <= 0 {
		clusterPercent = 0.25
	}
	return &SRDetector{clusterPercent: clusterPercent}
}

// Detect merges swing prices into levels. Each resulting level spans the
// cluster's price range and is scored by touch count.
func (d *SRDetector) Detect(swings []SwingPoint) []SRLevel {
	if len(swings) == 0 {
		return nil
	}

	prices := make([]float64, len(swings))
	for i, s := range swings {
		prices[i] = s.Price
	}
	sort.Float64s(prices)

	var levels []SRLevel
	clusterStart := 0

	for i := 1; i <= len(prices); i++ {
		// Close the cluster when the next price is too far from its anchor
		if i == len(prices) || (prices[i]-prices[clusterStart])/prices[clusterStart]*100 > d.clusterPercent {
			levels = append(levels, d.buildLevel(prices[clusterStart:i]))
			clusterStart = i
		}
	}

	return levels
}

func (d *SRDetector) buildLevel(cluster []float64) SRLevel {
	sum := 0.0
	for _, p := range cluster {
		sum += p
	}
	center := sum / float64(len(cluster))

	quality := float64(len(cluster)) * 25
	if quality > 100 {
		quality = 100
	}

	return SRLevel{
		Price:   center,
		Low:     cluster[0],
		High:    cluster[len(cluster)-1],
		Touches: len(cluster),
		Quality: quality,
	}
}
