package commands

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mofa-org/dorabridge/pkg/dataflow"
	"github.com/mofa-org/dorabridge/pkg/dorabridge"
	"github.com/mofa-org/dorabridge/pkg/dorabridge/dispatch"
)

type nodeSummary struct {
	ID      string   `json:"id" yaml:"id"`
	Path    string   `json:"path,omitempty" yaml:"path,omitempty"`
	Widget  string   `json:"widget,omitempty" yaml:"widget,omitempty"`
	Dynamic bool     `json:"dynamic" yaml:"dynamic"`
	Inputs  []string `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	Outputs []string `json:"outputs,omitempty" yaml:"outputs,omitempty"`
}

type logSource struct {
	Node   string `json:"node" yaml:"node"`
	Output string `json:"output" yaml:"output"`
}

type parseResult struct {
	Path       string                   `json:"path" yaml:"path"`
	Nodes      []nodeSummary            `json:"nodes" yaml:"nodes"`
	Bindings   []dispatch.WidgetBinding `json:"bindings" yaml:"bindings"`
	Env        []envRow                 `json:"env,omitempty" yaml:"env,omitempty"`
	LogSources []logSource              `json:"log_sources,omitempty" yaml:"log_sources,omitempty"`
}

func (r *parseResult) TableHeader() []string {
	return []string{"NODE", "WIDGET", "DYNAMIC", "INPUTS", "OUTPUTS"}
}

func (r *parseResult) TableRows() [][]string {
	rows := make([][]string, len(r.Nodes))
	for i, n := range r.Nodes {
		widget := n.Widget
		if widget == "" {
			widget = "-"
		}
		rows[i] = []string{n.ID, widget, strconv.FormatBool(n.Dynamic), strings.Join(n.Inputs, ","), strings.Join(n.Outputs, ",")}
	}
	return rows
}

func inputSources(n *dataflow.ParsedNode) []string {
	out := make([]string, len(n.Inputs))
	for i, in := range n.Inputs {
		out[i] = in.ID + "=" + in.Source
	}
	return out
}

func summarize(df *dataflow.ParsedDataflow) *parseResult {
	r := &parseResult{Path: df.Path}
	for i := range df.Nodes {
		n := &df.Nodes[i]
		s := nodeSummary{
			ID:      n.ID,
			Path:    n.Path,
			Dynamic: n.IsDynamic,
			Inputs:  inputSources(n),
			Outputs: n.Outputs,
		}
		if t, ok := n.MofaType(); ok {
			s.Widget = t.String()
		}
		r.Nodes = append(r.Nodes, s)
	}

	// Creating bridges does not connect them.
	d := dispatch.New(df, dorabridge.Options{})
	d.CreateBridges()
	r.Bindings = d.Bindings()
	d.Close()

	r.Env = envRows(df)
	for _, ls := range df.LogSources {
		r.LogSources = append(r.LogSources, logSource{Node: ls.NodeID, Output: ls.OutputID})
	}
	return r
}

var parseCmd = &cobra.Command{
	Use:   "parse <dataflow.yml>",
	Short: "Print the nodes and widget bindings of a dataflow",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		df, err := dataflow.ParseFile(args[0])
		if err != nil {
			return err
		}
		return output(summarize(df))
	},
}

func init() {
	addOutputFlags(parseCmd)
	rootCmd.AddCommand(parseCmd)
}
