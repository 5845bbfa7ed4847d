package scoring

import "github.com/sells-group/siteselect/internal/site"

// Completeness checklist weights. Each item reflects how much of a
// candidate's scoring input was directly sourced versus estimated.
const (
	populationSourceWeight = 0.30
	performanceSampleWeight = 0.30
	anchorCoverageWeight    = 0.20
	recencyWeight           = 0.10
	incomeProxyWeight       = 0.10
)

// minPerformanceSample is the smallest nearby-store sample considered
// sufficient for the performance sub-score.
const minPerformanceSample = 3

// assessQuality builds the DataQuality profile for a candidate from its
// ingestion flags and the observed performance sample size.
func assessQuality(c *site.Candidate) site.DataQuality {
	q := site.DataQuality{
		PopulationEstimated:           c.PopulationEstimated,
		PerformanceSampleInsufficient: c.PerformanceSampleSize < minPerformanceSample,
		AnchorsEstimated:              c.AnchorsEstimated,
		DataStale:                     c.DataStale,
		IncomeProxyPresent:            c.IncomeProxyPresent,
	}

	var score float64
	if !q.PopulationEstimated {
		score += populationSourceWeight
	}
	if !q.PerformanceSampleInsufficient {
		score += performanceSampleWeight
	}
	if !q.AnchorsEstimated {
		score += anchorCoverageWeight
	}
	if !q.DataStale {
		score += recencyWeight
	}
	if q.IncomeProxyPresent {
		score += incomeProxyWeight
	}
	q.CompletenessScore = score
	return q
}
