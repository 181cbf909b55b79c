// SPDX-FileCopyrightText: 2022 Sascha Brawer <sascha@brawer.ch>
// SPDX-License-Identifier: MIT

package pbfio

import (
	"fmt"
	"io"

	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
)

// Writer streams typed entities into a PBF file. The rewrite handler
// (internal/rewrite) lends it two kinds of builder per spec.md §9: a node
// builder (with a nested tag-list builder) and a way/relation builder (with
// nested tag-list and member/node-ref-list builders). Builders must be
// closed before the next one is begun; Writer enforces this with a small
// state machine so a caller can never commit a way while a tag-list builder
// is still open.
type Writer struct {
	enc   *osmpbf.Encoder
	state writerState
}

type writerState int

const (
	stateIdle writerState = iota
	stateNodeOpen
	stateWayOpen
	stateRelationOpen
)

// NewWriter wraps w for streaming PBF output, writing hdr as the file
// header.
func NewWriter(w io.Writer, hdr Header) (*Writer, error) {
	enc := osmpbf.NewEncoder(w)
	if err := enc.WriteHeader(&osmpbf.Header{
		Time:                 hdr.Time,
		ReplicationTimestamp: hdr.ReplicationTimestamp,
		ReplicationSeqNumber: hdr.ReplicationSeqNumber,
		ReplicationBaseURL:   hdr.ReplicationBaseURL,
		RequiredFeatures:     hdr.RequiredFeatures,
		OptionalFeatures:     hdr.OptionalFeatures,
		WritingProgram:       hdr.WritingProgram,
		Source:               hdr.Source,
	}); err != nil {
		return nil, fmt.Errorf("pbfio: writing PBF header: %w", err)
	}
	return &Writer{enc: enc}, nil
}

// NodeBuilder begins a scoped node entity. Call Tag to add tags,
// then Commit to emit the node and return to the idle state.
type NodeBuilder struct {
	w    *Writer
	node Node
}

// BeginNode opens a node builder for id at the given location. The caller
// must Commit (or Discard) it before beginning another entity.
func (w *Writer) BeginNode(id int64, lon, lat float64) *NodeBuilder {
	if w.state != stateIdle {
		panic("pbfio: BeginNode called while another builder is open")
	}
	w.state = stateNodeOpen
	return &NodeBuilder{w: w, node: Node{ID: id, Lon: lon, Lat: lat}}
}

// Tag appends one tag to the node being built.
func (b *NodeBuilder) Tag(key, value string) *NodeBuilder {
	b.node.Tags = append(b.node.Tags, Tag{Key: key, Value: value})
	return b
}

// Commit closes the builder and emits the node.
func (b *NodeBuilder) Commit() error {
	defer func() { b.w.state = stateIdle }()
	return b.w.enc.Encode(&osm.Node{
		ID:   osm.NodeID(b.node.ID),
		Lon:  b.node.Lon,
		Lat:  b.node.Lat,
		Tags: toOSMTags(b.node.Tags),
	})
}

// Discard closes the builder without emitting anything.
func (b *NodeBuilder) Discard() {
	b.w.state = stateIdle
}

// WayBuilder begins a scoped way entity: a tag-list builder plus a
// way-node-list builder, both closed before the way itself is committed.
type WayBuilder struct {
	w   *Writer
	way Way
}

// BeginWay opens a way builder for id.
func (w *Writer) BeginWay(id int64) *WayBuilder {
	if w.state != stateIdle {
		panic("pbfio: BeginWay called while another builder is open")
	}
	w.state = stateWayOpen
	return &WayBuilder{w: w, way: Way{ID: id}}
}

// Tag appends one tag to the way being built.
func (b *WayBuilder) Tag(key, value string) *WayBuilder {
	b.way.Tags = append(b.way.Tags, Tag{Key: key, Value: value})
	return b
}

// Ref appends one node-id reference to the way's node list.
func (b *WayBuilder) Ref(nodeID int64) *WayBuilder {
	b.way.Nodes = append(b.way.Nodes, nodeID)
	return b
}

// Commit closes the builder and emits the way.
func (b *WayBuilder) Commit() error {
	defer func() { b.w.state = stateIdle }()
	wayNodes := make(osm.WayNodes, len(b.way.Nodes))
	for i, ref := range b.way.Nodes {
		wayNodes[i] = osm.WayNode{ID: osm.NodeID(ref)}
	}
	return b.w.enc.Encode(&osm.Way{
		ID:    osm.WayID(b.way.ID),
		Nodes: wayNodes,
		Tags:  toOSMTags(b.way.Tags),
	})
}

// RelationBuilder begins a scoped relation entity.
type RelationBuilder struct {
	w   *Writer
	rel Relation
}

// BeginRelation opens a relation builder for id.
func (w *Writer) BeginRelation(id int64) *RelationBuilder {
	if w.state != stateIdle {
		panic("pbfio: BeginRelation called while another builder is open")
	}
	w.state = stateRelationOpen
	return &RelationBuilder{w: w, rel: Relation{ID: id}}
}

// Tag appends one tag to the relation being built.
func (b *RelationBuilder) Tag(key, value string) *RelationBuilder {
	b.rel.Tags = append(b.rel.Tags, Tag{Key: key, Value: value})
	return b
}

// Member appends one member to the relation's member list.
func (b *RelationBuilder) Member(m Member) *RelationBuilder {
	b.rel.Members = append(b.rel.Members, m)
	return b
}

// Commit closes the builder and emits the relation.
func (b *RelationBuilder) Commit() error {
	defer func() { b.w.state = stateIdle }()
	members := make(osm.Members, len(b.rel.Members))
	for i, m := range b.rel.Members {
		var t osm.Type
		switch m.Type {
		case MemberNode:
			t = osm.TypeNode
		case MemberWay:
			t = osm.TypeWay
		case MemberRelation:
			t = osm.TypeRelation
		}
		members[i] = osm.Member{Type: t, Ref: m.Ref, Role: m.Role}
	}
	return b.w.enc.Encode(&osm.Relation{
		ID:      osm.RelationID(b.rel.ID),
		Members: members,
		Tags:    toOSMTags(b.rel.Tags),
	})
}

// Close flushes and closes the underlying encoder.
func (w *Writer) Close() error {
	if w.state != stateIdle {
		return fmt.Errorf("pbfio: Close called with a builder still open")
	}
	return w.enc.Close()
}

func toOSMTags(t Tags) osm.Tags {
	if len(t) == 0 {
		return nil
	}
	out := make(osm.Tags, len(t))
	for i, tag := range t {
		out[i] = osm.Tag{Key: tag.Key, Value: tag.Value}
	}
	return out
}
