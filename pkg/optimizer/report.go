package optimizer

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/aybabtme/uniplot/histogram"
	"github.com/olekukonko/tablewriter"
)

// PrintReport writes a ranked table of the top results followed by a
// histogram of the best candidate's per-trade returns
func PrintReport(w io.Writer, results []*Result, topN int) error {
	if len(results) == 0 {
		return fmt.Errorf("no results to report")
	}

	if topN <= 0 || topN > len(results) {
		topN = len(results)
	}

	paramNames := sortedParamNames(results[0].Params)

	table := tablewriter.NewWriter(w)
	header := append([]string{"#"}, paramNames...)
	header = append(header, "Return", "Lower", "Win%", "Payoff", "Pr.Fact")
	table.SetHeader(header)

	for i, result := range results[:topN] {
		row := []string{fmt.Sprintf("%d", i+1)}
		for _, name := range paramNames {
			row = append(row, fmt.Sprintf("%v", result.Params[name]))
		}
		row = append(row,
			fmt.Sprintf("%.2f%%", result.Metrics[MetricMeanReturn]*100),
			fmt.Sprintf("%.2f%%", result.Metrics[MetricMeanReturnLower]*100),
			fmt.Sprintf("%.1f", result.Metrics[MetricWinRate]*100),
			fmt.Sprintf("%.2f", result.Metrics[MetricPayoff]),
			fmt.Sprintf("%.2f", result.Metrics[MetricProfitFactor]),
		)
		table.Append(row)
	}
	table.Render()

	best := results[0]
	returnsPercent := make([]float64, len(best.Returns))
	for i, r := range best.Returns {
		returnsPercent[i] = r * 100
	}

	fmt.Fprintln(w, "------ RETURN DISTRIBUTION (%) -------")
	hist := histogram.Hist(15, returnsPercent)
	return histogram.Fprint(w, hist, histogram.Linear(10))
}

// String renders a parameter set as "key=value" pairs in stable order
func (p ParameterSet) String() string {
	names := sortedParamNames(p)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=%v", name, p[name]))
	}
	return strings.Join(parts, " ")
}

func sortedParamNames(params ParameterSet) []string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
