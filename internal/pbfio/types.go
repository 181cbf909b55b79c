// SPDX-FileCopyrightText: 2022 Sascha Brawer <sascha@brawer.ch>
// SPDX-License-Identifier: MIT

// Package pbfio is the thin adapter between this program's filter/rewrite
// logic and the OSM PBF codec. Per spec.md §1, the codec itself is treated
// as an external collaborator: this package only fixes the shape of the
// typed entities it yields on read and the entity builders it accepts on
// write, backed here by github.com/paulmach/osm and its osmpbf subpackage.
package pbfio

import "time"

// Tag is a single OSM key/value pair. Tag order is preserved on both read
// and write, matching spec.md §3.
type Tag struct {
	Key   string
	Value string
}

// Tags is an ordered tag list with lookup helpers mirroring osm.Tags, kept
// as our own type so the rest of the program does not depend directly on
// the codec library's type.
type Tags []Tag

// Find returns the value for key, and whether it was present.
func (t Tags) Find(key string) (string, bool) {
	for _, tag := range t {
		if tag.Key == key {
			return tag.Value, true
		}
	}
	return "", false
}

// Node is the in-memory representation of an OSM node (spec.md §3).
type Node struct {
	ID   int64
	Lon  float64
	Lat  float64
	Tags Tags
}

// Way is the in-memory representation of an OSM way (spec.md §3).
type Way struct {
	ID    int64
	Nodes []int64 // node id references, in order
	Tags  Tags
}

// MemberType distinguishes the three kinds of relation member.
type MemberType uint8

const (
	MemberNode MemberType = iota
	MemberWay
	MemberRelation
)

// Member is one entry in a relation's ordered member list (spec.md §3).
type Member struct {
	Type MemberType
	Ref  int64
	Role string
}

// Relation is the in-memory representation of an OSM relation (spec.md §3).
type Relation struct {
	ID      int64
	Members []Member
	Tags    Tags
}

// Header carries the subset of PBF file-header fields this program reads
// and rewrites: spec.md §6 requires preserving original dates while
// overriding the generator string. Time and the three Replication* fields
// are the "original dates" spec.md §6 requires survive into the output
// header; only WritingProgram is overridden by the driver.
type Header struct {
	Time                 time.Time
	ReplicationTimestamp time.Time
	ReplicationSeqNumber int64
	ReplicationBaseURL   string
	RequiredFeatures     []string
	OptionalFeatures     []string
	WritingProgram       string
	Source               string
}
