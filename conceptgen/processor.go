package conceptgen

import (
	"encoding/json"
	"io"
	"log"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// DimStats is the per-(category,template,parameter,dimension) table
// the Parameter Processor builds from a training corpus (spec.md §3
// "Statistics tables").
type DimStats struct {
	Quantiles []float64 `json:"quantiles"` // len NumBins+1, sorted, ascending
	Min       float64   `json:"min"`
	Max       float64   `json:"max"`
	Mean      float64   `json:"mean"`
	Std       float64   `json:"std"`
}

// DimStatistics is the introspection record GetParamStatistics returns,
// ported from the original source's get_param_statistics (SPEC_FULL.md
// §4.2).
type DimStatistics struct {
	Dimension int
	Min       float64
	Max       float64
	Mean      float64
	Std       float64
}

// persistedStats is the on-disk shape described in spec.md §6:
// category -> template -> param -> dim-index -> stats.
type persistedStats map[string]map[string]map[string]map[int]DimStats

// ParameterProcessor builds and consults per-dimension quantile tables
// that discretize floats to token IDs drawn from the reserved value
// range, and inverts the mapping.
type ParameterProcessor struct {
	NumBins    int
	TokenStart int // V0

	stats persistedStats
	// arities observed per (category, template, param), for GetParamStatistics.
	arities map[string]map[string]map[string][]int
}

// NewParameterProcessor constructs a processor with numBins bins whose
// value tokens start at tokenStart (V0). Both are required; DefaultConfig
// carries the usual V0=100000, NumBins=1024.
func NewParameterProcessor(numBins, tokenStart int) *ParameterProcessor {
	return &ParameterProcessor{
		NumBins:    numBins,
		TokenStart: tokenStart,
		stats:      persistedStats{},
		arities:    map[string]map[string]map[string][]int{},
	}
}

// Collect ingests a training corpus, accumulating values per
// (category,template,param,dimension), then computing quantile tables.
// A scalar parameter is treated as dimension 0. Non-finite values are
// discarded. When a parameter is observed with more than one arity, all
// dimensions up to the maximum are kept.
func (p *ParameterProcessor) Collect(items []ConceptItem) {
	type key struct {
		cat, tpl, param string
		dim             int
	}
	buckets := map[key][]float64{}

	for _, item := range items {
		for _, ti := range item.Conceptualization {
			for name, pv := range ti.Parameters {
				arities := p.arities[item.Category]
				if arities == nil {
					arities = map[string]map[string][]int{}
					p.arities[item.Category] = arities
				}
				byParam := arities[ti.Template]
				if byParam == nil {
					byParam = map[string][]int{}
					arities[ti.Template] = byParam
				}
				n := len(pv.Values)
				if !containsInt(byParam[name], n) {
					byParam[name] = append(byParam[name], n)
				}

				for dim, v := range pv.Values {
					k := key{item.Category, ti.Template, name, dim}
					buckets[k] = append(buckets[k], v)
				}
			}
		}
	}

	for k, values := range buckets {
		finite := make([]float64, 0, len(values))
		for _, v := range values {
			if !math.IsNaN(v) && !math.IsInf(v, 0) {
				finite = append(finite, v)
			}
		}
		if len(finite) == 0 {
			continue
		}
		sort.Float64s(finite)

		quantiles := make([]float64, p.NumBins+1)
		for i := 0; i <= p.NumBins; i++ {
			q := float64(i) / float64(p.NumBins)
			quantiles[i] = stat.Quantile(q, stat.Empirical, finite, nil)
		}

		mean, std := stat.MeanStdDev(finite, nil)

		catMap, ok := p.stats[k.cat]
		if !ok {
			catMap = map[string]map[string]map[int]DimStats{}
			p.stats[k.cat] = catMap
		}
		tplMap, ok := catMap[k.tpl]
		if !ok {
			tplMap = map[string]map[int]DimStats{}
			catMap[k.tpl] = tplMap
		}
		paramMap, ok := tplMap[k.param]
		if !ok {
			paramMap = map[int]DimStats{}
			tplMap[k.param] = paramMap
		}
		paramMap[k.dim] = DimStats{
			Quantiles: quantiles,
			Min:       floats.Min(finite),
			Max:       floats.Max(finite),
			Mean:      mean,
			Std:       std,
		}
	}
}

func containsInt(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

func (p *ParameterProcessor) lookup(c, t, param string, dim int) (DimStats, bool) {
	byTpl, ok := p.stats[c]
	if !ok {
		return DimStats{}, false
	}
	byParam, ok := byTpl[t]
	if !ok {
		return DimStats{}, false
	}
	byDim, ok := byParam[param]
	if !ok {
		return DimStats{}, false
	}
	d, ok := byDim[dim]
	return d, ok
}

// Discretize converts a continuous value to a token ID. Unknown
// (c,t,p,d) falls back to TokenStart (UnknownSchemaEntry, logged, not
// thrown — spec.md §4.2 edge cases).
func (p *ParameterProcessor) Discretize(value float64, c, t, param string, dim int) Token {
	d, ok := p.lookup(c, t, param, dim)
	if !ok {
		log.Printf("conceptgen: %s: discretize(%s,%s,%s,dim=%d): unknown schema entry, falling back to V0",
			UnknownSchemaEntry, c, t, param, dim)
		return p.TokenStart
	}
	bin := searchSortedBin(d.Quantiles, value, p.NumBins)
	return p.TokenStart + bin
}

// searchSortedBin mirrors the source's
// clamp(searchsorted(quantiles, value) - 1, 0, numBins-1).
func searchSortedBin(quantiles []float64, value float64, numBins int) int {
	idx := sort.SearchFloat64s(quantiles, value)
	bin := idx - 1
	if bin < 0 {
		bin = 0
	}
	if bin > numBins-1 {
		bin = numBins - 1
	}
	return bin
}

// Recover converts a token ID back to a continuous value, returning the
// upper edge of its quantile bin (matching the source convention).
// Unknown (c,t,p,d) returns 0.0 (spec.md §4.2 edge cases).
func (p *ParameterProcessor) Recover(token Token, c, t, param string, dim int) float64 {
	d, ok := p.lookup(c, t, param, dim)
	if !ok {
		log.Printf("conceptgen: %s: recover(%s,%s,%s,dim=%d): unknown schema entry, returning 0.0",
			UnknownSchemaEntry, c, t, param, dim)
		return 0.0
	}
	bin := (token - p.TokenStart) % p.NumBins
	if bin < 0 {
		bin += p.NumBins
	}
	if bin > len(d.Quantiles)-2 {
		bin = len(d.Quantiles) - 2
	}
	if bin < 0 {
		bin = 0
	}
	return d.Quantiles[bin+1]
}

// ProcessItem discretizes every parameter value of item elementwise,
// returning a new item whose ParamValue.Values hold token IDs (as
// float64, integral). Idempotent: calling ProcessItem again on an
// already-processed item is a no-op for that item's values because a
// value that is already an integral token id inside the reserved range
// [TokenStart, TokenStart+NumBins) is passed through unchanged — see
// processor_test.go for the round-trip property.
func (p *ParameterProcessor) ProcessItem(item ConceptItem) ConceptItem {
	out := item
	out.Conceptualization = make([]TemplateInstance, len(item.Conceptualization))
	for i, ti := range item.Conceptualization {
		newParams := make(map[string]ParamValue, len(ti.Parameters))
		for name, pv := range ti.Parameters {
			values := make([]float64, len(pv.Values))
			for dim, v := range pv.Values {
				if v == math.Trunc(v) && v >= float64(p.TokenStart) && v < float64(p.TokenStart+p.NumBins) {
					values[dim] = v
					continue
				}
				values[dim] = float64(p.Discretize(v, item.Category, ti.Template, name, dim))
			}
			newParams[name] = ParamValue{Values: values, Scalar: pv.Scalar}
		}
		out.Conceptualization[i] = TemplateInstance{Template: ti.Template, Parameters: newParams}
	}
	return out
}

// RecoverItem converts a processed item's token-ID parameter values
// back to continuous floats elementwise.
func (p *ParameterProcessor) RecoverItem(item ConceptItem) ConceptItem {
	out := item
	out.Conceptualization = make([]TemplateInstance, len(item.Conceptualization))
	for i, ti := range item.Conceptualization {
		newParams := make(map[string]ParamValue, len(ti.Parameters))
		for name, pv := range ti.Parameters {
			values := make([]float64, len(pv.Values))
			for dim, v := range pv.Values {
				values[dim] = p.Recover(int(v), item.Category, ti.Template, name, dim)
			}
			newParams[name] = ParamValue{Values: values, Scalar: pv.Scalar}
		}
		out.Conceptualization[i] = TemplateInstance{Template: ti.Template, Parameters: newParams}
	}
	return out
}

// GetParamStatistics returns per-dimension min/max/mean/std for
// (category, template, param), ported from the original source's
// get_param_statistics (SPEC_FULL.md §4.2).
func (p *ParameterProcessor) GetParamStatistics(c, t, param string) []DimStatistics {
	arities, ok := p.arities[c][t]
	if !ok {
		return nil
	}
	obs, ok := arities[param]
	if !ok {
		return nil
	}
	dims := 0
	for _, a := range obs {
		if a > dims {
			dims = a
		}
	}
	out := make([]DimStatistics, 0, dims)
	for dim := 0; dim < dims; dim++ {
		d, ok := p.lookup(c, t, param, dim)
		if !ok {
			continue
		}
		out = append(out, DimStatistics{Dimension: dim, Min: d.Min, Max: d.Max, Mean: d.Mean, Std: d.Std})
	}
	return out
}

// SaveStats persists the quantile tables as
// category -> template -> param -> dim-index -> stats (spec.md §6).
func (p *ParameterProcessor) SaveStats(w io.Writer) error {
	return json.NewEncoder(w).Encode(p.stats)
}

// LoadStats replaces the processor's statistics with a previously
// persisted table.
func (p *ParameterProcessor) LoadStats(r io.Reader) error {
	var loaded persistedStats
	if err := json.NewDecoder(r).Decode(&loaded); err != nil {
		return err
	}
	p.stats = loaded
	return nil
}
