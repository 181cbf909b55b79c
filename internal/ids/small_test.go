// SPDX-FileCopyrightText: 2022 Sascha Brawer <sascha@brawer.ch>
// SPDX-License-Identifier: MIT

package ids

import "testing"

func TestSmallSetGet(t *testing.T) {
	s := NewSmall()
	ids := []int64{42, 1, 1000, 1, 0}
	for _, id := range ids {
		s.Set(id)
	}
	if got, want := s.Size(), 4; got != want {
		t.Errorf("Size() = %d, want %d", got, want)
	}
	for _, id := range []int64{0, 1, 42, 1000} {
		if !s.Get(id) {
			t.Errorf("Get(%d) = false, want true", id)
		}
	}
	if s.Get(2) {
		t.Error("Get(2) = true, want false")
	}
}

func TestSmallNegativeIgnored(t *testing.T) {
	s := NewSmall()
	s.Set(-5)
	if s.Get(-5) || s.Size() != 0 {
		t.Error("negative id was stored")
	}
}
