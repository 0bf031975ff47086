package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mofa-org/dorabridge/pkg/dataflow"
)

type envRow struct {
	Variable string `json:"variable" yaml:"variable"`
	Node     string `json:"node" yaml:"node"`
	Key      string `json:"key" yaml:"key"`
	Default  string `json:"default,omitempty" yaml:"default,omitempty"`
	Status   string `json:"status" yaml:"status"`
}

type envReport []envRow

func (r envReport) TableHeader() []string {
	return []string{"VARIABLE", "NODE", "KEY", "DEFAULT", "STATUS"}
}

func (r envReport) TableRows() [][]string {
	rows := make([][]string, len(r))
	for i, e := range r {
		rows[i] = []string{e.Variable, e.Node, e.Key, e.Default, e.Status}
	}
	return rows
}

func envRows(df *dataflow.ParsedDataflow) []envRow {
	var rows []envRow
	for _, req := range df.EnvRequirements {
		status := "set"
		switch {
		case req.Missing():
			status = "missing"
		case !req.IsSet:
			status = "default"
		}
		rows = append(rows, envRow{
			Variable: req.Variable,
			Node:     req.NodeID,
			Key:      req.Key,
			Default:  req.Default,
			Status:   status,
		})
	}
	return rows
}

var envCmd = &cobra.Command{
	Use:   "env <dataflow.yml>",
	Short: "Check the environment variables a dataflow needs",
	Long: `List the environment variables referenced by node env values and
whether each one is set. Exits with an error when a variable without a
default is unset.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		df, err := dataflow.ParseFile(args[0])
		if err != nil {
			return err
		}
		if !cmd.Flags().Changed("output") {
			formatOutput = "table"
		}
		if err := output(envReport(envRows(df))); err != nil {
			return err
		}
		if missing := df.MissingEnv(); len(missing) > 0 {
			return fmt.Errorf("%d environment variable(s) not set", len(missing))
		}
		return nil
	},
}

func init() {
	addOutputFlags(envCmd)
	rootCmd.AddCommand(envCmd)
}
