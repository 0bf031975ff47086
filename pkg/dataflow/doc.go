// Package dataflow parses dora dataflow descriptions and controls dataflow
// runs.
//
// [Parse] reads the YAML description, keeping the declaration order of
// nodes and inputs, and records which environment variables the node env
// values reference and which outputs carry logs. [Controller] starts and
// stops a parsed dataflow through a [Runner] such as [CLIRunner].
package dataflow
