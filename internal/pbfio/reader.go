// SPDX-FileCopyrightText: 2022 Sascha Brawer <sascha@brawer.ch>
// SPDX-License-Identifier: MIT

package pbfio

import (
	"context"
	"fmt"
	"io"
	"runtime"

	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
)

// Scope selects which entity kinds a Reader yields, mirroring spec.md §4.6
// step 5 ("ways | relations only") vs. step 9 ("nodes | ways | relations").
type Scope struct {
	Nodes     bool
	Ways      bool
	Relations bool
}

var (
	ScopeWaysRelations = Scope{Ways: true, Relations: true}
	ScopeAll           = Scope{Nodes: true, Ways: true, Relations: true}
)

// Reader streams typed entities out of a PBF file in file order: nodes
// before ways before relations within a block, which is canonical for PBF
// (spec.md §5).
type Reader struct {
	scanner *osmpbf.Scanner
	scope   Scope
	header  Header
}

// OpenReader reads the PBF header from r and prepares r for streaming read,
// restricted to scope.
func OpenReader(ctx context.Context, r io.Reader, scope Scope) (*Reader, error) {
	scanner := osmpbf.New(ctx, r, runtime.GOMAXPROCS(-1))
	scanner.SkipNodes = !scope.Nodes
	scanner.SkipWays = !scope.Ways
	scanner.SkipRelations = !scope.Relations

	header, err := scanner.Header()
	if err != nil {
		return nil, fmt.Errorf("pbfio: reading PBF header: %w", err)
	}

	return &Reader{
		scanner: scanner,
		scope:   scope,
		header:  convertHeader(header),
	}, nil
}

// Header returns the input file's header, read once at open time.
func (r *Reader) Header() Header {
	return r.header
}

// Next returns the next entity in file order. It returns (nil, nil, io.EOF)
// once the stream is exhausted.
//
// The returned value is exactly one of *Node, *Way or *Relation.
func (r *Reader) Next() (any, error) {
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return nil, fmt.Errorf("pbfio: scanning PBF: %w", err)
		}
		return nil, io.EOF
	}

	switch obj := r.scanner.Object().(type) {
	case *osm.Node:
		return convertNode(obj), nil
	case *osm.Way:
		return convertWay(obj), nil
	case *osm.Relation:
		return convertRelation(obj), nil
	default:
		return nil, fmt.Errorf("pbfio: unexpected object type %T", obj)
	}
}

// Close stops the scanner and releases its decoding resources. It does not
// close the io.Reader passed to OpenReader; the caller closes that.
func (r *Reader) Close() error {
	return r.scanner.Close()
}

// EntityVisitor receives the typed entities a Reader yields, in file
// order. internal/osmfilter.Handler and internal/rewrite.Handler both
// satisfy it, so the driver can push either pass through Drive instead of
// hand-rolling its own type switch.
type EntityVisitor interface {
	VisitNode(*Node) error
	VisitWay(*Way) error
	VisitRelation(*Relation) error
}

// Drive feeds every entity r yields to v, in file order, stopping at the
// first error returned by either the reader or the visitor. It returns nil
// once the stream is exhausted.
func Drive(r *Reader, v EntityVisitor) error {
	for {
		obj, err := r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		switch o := obj.(type) {
		case *Node:
			err = v.VisitNode(o)
		case *Way:
			err = v.VisitWay(o)
		case *Relation:
			err = v.VisitRelation(o)
		}
		if err != nil {
			return err
		}
	}
}

// convertHeader carries every field of the input header through, including
// its replication timestamp/sequence/base URL, so the output header keeps
// the original dates of spec.md §6; only WritingProgram is later overridden
// by the driver with the generator string.
func convertHeader(h *osmpbf.Header) Header {
	if h == nil {
		return Header{}
	}
	return Header{
		Time:                 h.Time,
		ReplicationTimestamp: h.ReplicationTimestamp,
		ReplicationSeqNumber: h.ReplicationSeqNumber,
		ReplicationBaseURL:   h.ReplicationBaseURL,
		RequiredFeatures:     h.RequiredFeatures,
		OptionalFeatures:     h.OptionalFeatures,
		WritingProgram:       h.WritingProgram,
		Source:               h.Source,
	}
}

func convertTags(t osm.Tags) Tags {
	if len(t) == 0 {
		return nil
	}
	out := make(Tags, len(t))
	for i, tag := range t {
		out[i] = Tag{Key: tag.Key, Value: tag.Value}
	}
	return out
}

func convertNode(n *osm.Node) *Node {
	return &Node{
		ID:   int64(n.ID),
		Lon:  n.Lon,
		Lat:  n.Lat,
		Tags: convertTags(n.Tags),
	}
}

func convertWay(w *osm.Way) *Way {
	refs := make([]int64, len(w.Nodes))
	for i, wn := range w.Nodes {
		refs[i] = int64(wn.ID)
	}
	return &Way{
		ID:    int64(w.ID),
		Nodes: refs,
		Tags:  convertTags(w.Tags),
	}
}

func convertRelation(rel *osm.Relation) *Relation {
	members := make([]Member, len(rel.Members))
	for i, m := range rel.Members {
		var t MemberType
		switch m.Type {
		case osm.TypeNode:
			t = MemberNode
		case osm.TypeWay:
			t = MemberWay
		case osm.TypeRelation:
			t = MemberRelation
		}
		members[i] = Member{Type: t, Ref: m.Ref, Role: m.Role}
	}
	return &Relation{
		ID:      int64(rel.ID),
		Members: members,
		Tags:    convertTags(rel.Tags),
	}
}
