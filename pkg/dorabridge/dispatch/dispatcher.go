// Package dispatch creates and drives the widget bridges of a dataflow.
package dispatch

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/mofa-org/dorabridge/pkg/dataflow"
	"github.com/mofa-org/dorabridge/pkg/dorabridge"
	"github.com/mofa-org/dorabridge/pkg/dorabridge/widgets"
)

// Factory creates the bridge for a parsed node.
type Factory func(node *dataflow.ParsedNode, opts dorabridge.Options) dorabridge.Bridge

// DefaultFactories returns the factories for every known node type.
func DefaultFactories() map[dorabridge.NodeType]Factory {
	return map[dorabridge.NodeType]Factory{
		dorabridge.NodeAudioPlayer: func(n *dataflow.ParsedNode, opts dorabridge.Options) dorabridge.Bridge {
			return widgets.NewAudioPlayer(n.ID, opts)
		},
		dorabridge.NodeParticipantPanel: func(n *dataflow.ParsedNode, opts dorabridge.Options) dorabridge.Bridge {
			return widgets.NewParticipantPanel(n.ID, opts)
		},
		dorabridge.NodeSystemLog: func(n *dataflow.ParsedNode, opts dorabridge.Options) dorabridge.Bridge {
			var options []widgets.LogOption
			if ids := n.InputIDs(); len(ids) > 0 {
				options = append(options, widgets.WithLogInputs(ids...))
			}
			return widgets.NewSystemLog(n.ID, opts, options...)
		},
		dorabridge.NodePromptInput: func(n *dataflow.ParsedNode, opts dorabridge.Options) dorabridge.Bridge {
			return widgets.NewPromptInput(n.ID, opts)
		},
		dorabridge.NodeChatViewer: func(n *dataflow.ParsedNode, opts dorabridge.Options) dorabridge.Bridge {
			return widgets.NewChatViewer(n.ID, opts)
		},
		dorabridge.NodeMicInput: func(n *dataflow.ParsedNode, opts dorabridge.Options) dorabridge.Bridge {
			return widgets.NewMicInput(n.ID, opts)
		},
		dorabridge.NodeMoFACast: func(n *dataflow.ParsedNode, opts dorabridge.Options) dorabridge.Bridge {
			return widgets.NewCastController(n.ID, opts)
		},
	}
}

// WidgetBinding describes a created bridge and the wiring its node declares
// in the dataflow.
type WidgetBinding struct {
	NodeID   string              `json:"node_id" yaml:"node_id"`
	NodeType dorabridge.NodeType `json:"node_type" yaml:"node_type"`
	Inputs   []string            `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	Outputs  []string            `json:"outputs,omitempty" yaml:"outputs,omitempty"`
}

type entry struct {
	binding WidgetBinding
	bridge  dorabridge.Bridge
}

// Dispatcher owns the bridges of one dataflow.
type Dispatcher struct {
	df   *dataflow.ParsedDataflow
	opts dorabridge.Options
	log  *slog.Logger

	mu        sync.Mutex
	factories map[dorabridge.NodeType]Factory
	entries   []entry
	byID      map[string]int
}

// New creates a dispatcher for df. opts is passed to every bridge.
func New(df *dataflow.ParsedDataflow, opts dorabridge.Options) *Dispatcher {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		df:        df,
		opts:      opts,
		log:       log.With("component", "dispatch"),
		factories: DefaultFactories(),
		byID:      make(map[string]int),
	}
}

// RegisterFactory replaces the factory for t. It only affects bridges
// created afterwards.
func (d *Dispatcher) RegisterFactory(t dorabridge.NodeType, f Factory) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.factories[t] = f
}

// CreateBridges creates one bridge per dataflow node with a known widget
// node type. Bridges that already exist are kept. It returns the number of
// bridges created.
func (d *Dispatcher) CreateBridges() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	created := 0
	for i := range d.df.Nodes {
		node := &d.df.Nodes[i]
		typ, ok := node.MofaType()
		if !ok {
			if dorabridge.IsMofaNode(node.ID) {
				d.log.Warn("unknown mofa node", "node", node.ID)
			} else {
				d.log.Debug("skipping node", "node", node.ID)
			}
			continue
		}
		if _, exists := d.byID[node.ID]; exists {
			continue
		}
		f := d.factories[typ]
		if f == nil {
			d.log.Warn("no factory for node type", "node", node.ID, "type", typ)
			continue
		}
		d.byID[node.ID] = len(d.entries)
		d.entries = append(d.entries, entry{
			binding: WidgetBinding{
				NodeID:   node.ID,
				NodeType: typ,
				Inputs:   node.InputIDs(),
				Outputs:  node.Outputs,
			},
			bridge: f(node, d.opts),
		})
		created++
		d.log.Info("bridge created", "node", node.ID)
	}
	return created
}

func (d *Dispatcher) bridges() []dorabridge.Bridge {
	d.mu.Lock()
	defer d.mu.Unlock()
	bs := make([]dorabridge.Bridge, len(d.entries))
	for i, e := range d.entries {
		bs[i] = e.bridge
	}
	return bs
}

// each calls fn for every bridge concurrently and joins the errors.
func (d *Dispatcher) each(fn func(dorabridge.Bridge) error) error {
	bs := d.bridges()
	errs := make([]error, len(bs))
	var g errgroup.Group
	for i, b := range bs {
		g.Go(func() error {
			if err := fn(b); err != nil {
				errs[i] = fmt.Errorf("%s: %w", b.NodeID(), err)
			}
			return nil
		})
	}
	g.Wait()
	return errors.Join(errs...)
}

// ConnectAll connects every bridge that is not connected yet.
func (d *Dispatcher) ConnectAll() error {
	return d.each(func(b dorabridge.Bridge) error {
		if b.IsConnected() {
			return nil
		}
		return b.Connect()
	})
}

// DisconnectAll disconnects every bridge.
func (d *Dispatcher) DisconnectAll() error {
	return d.each(func(b dorabridge.Bridge) error {
		return b.Disconnect()
	})
}

// Close closes every bridge and waits for the workers to exit.
func (d *Dispatcher) Close() error {
	return d.each(func(b dorabridge.Bridge) error {
		return b.Close()
	})
}

// Bridge returns the bridge created for nodeID.
func (d *Dispatcher) Bridge(nodeID string) (dorabridge.Bridge, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	i, ok := d.byID[nodeID]
	if !ok {
		return nil, false
	}
	return d.entries[i].bridge, true
}

// Bridges returns the created bridges in dataflow order.
func (d *Dispatcher) Bridges() []dorabridge.Bridge {
	return d.bridges()
}

// Bindings returns the bindings of the created bridges in dataflow order.
func (d *Dispatcher) Bindings() []WidgetBinding {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]WidgetBinding, len(d.entries))
	for i, e := range d.entries {
		out[i] = e.binding
	}
	return out
}

// State returns the aggregate state of the created bridges.
func (d *Dispatcher) State() AggregateState {
	bs := d.bridges()
	states := make([]dorabridge.BridgeState, len(bs))
	for i, b := range bs {
		states[i] = b.State()
	}
	return Aggregate(states)
}
