// SPDX-FileCopyrightText: 2022 Sascha Brawer <sascha@brawer.ch>
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"io"

	"github.com/brawer/osm-transform/internal/pbfio"
)

// progressReportInterval is how often, in entities visited, the progress
// printer overwrites its status line.
const progressReportInterval = 250_000

// progressVisitor wraps a pbfio.EntityVisitor, printing a line-overwriting
// entity counter while a pass is active (spec.md §7 "User-visible
// outputs"), in the spirit of the teacher's plain fmt.Printf status lines
// rather than a third-party progress-bar library.
type progressVisitor struct {
	inner pbfio.EntityVisitor
	out   io.Writer
	label string
	count int64
}

func newProgressVisitor(out io.Writer, label string, inner pbfio.EntityVisitor) *progressVisitor {
	return &progressVisitor{inner: inner, out: out, label: label}
}

func (p *progressVisitor) tick() {
	p.count++
	if p.count%progressReportInterval == 0 {
		fmt.Fprintf(p.out, "\r%s: %d", p.label, p.count)
	}
}

// done prints a final status line, moving to the next line so later log
// output doesn't get overwritten in turn.
func (p *progressVisitor) done() {
	fmt.Fprintf(p.out, "\r%s: %d done\n", p.label, p.count)
}

func (p *progressVisitor) VisitNode(n *pbfio.Node) error {
	p.tick()
	return p.inner.VisitNode(n)
}

func (p *progressVisitor) VisitWay(w *pbfio.Way) error {
	p.tick()
	return p.inner.VisitWay(w)
}

func (p *progressVisitor) VisitRelation(r *pbfio.Relation) error {
	p.tick()
	return p.inner.VisitRelation(r)
}
