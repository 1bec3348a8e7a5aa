package profile

import (
	"testing"

	"github.com/guidoenr/neuroflow/internal/params"
)

func TestStoreHasFivePresets(t *testing.T) {
	s := NewStore()
	ids := s.IDs()
	want := []string{"deep_focus", "ocean_flow", "stormy_cabin", "zen_garden", "beta_boost"}
	if len(ids) != len(want) {
		t.Fatalf("ids=%v", ids)
	}
	for i, id := range want {
		if ids[i] != id {
			t.Fatalf("ids=%v want %v", ids, want)
		}
		p, ok := s.Get(id)
		if !ok {
			t.Fatalf("missing %s", id)
		}
		for _, key := range params.Keys() {
			if _, ok := p.Values()[key]; !ok {
				t.Fatalf("%s lacks %s", id, key)
			}
		}
	}
	if _, ok := s.Get(Default); !ok {
		t.Fatalf("default profile missing")
	}
}

func TestOceanFlowValues(t *testing.T) {
	p, _ := NewStore().Get("ocean_flow")
	if p.Get(params.VolSea) != 0.75 || p.Get(params.VolWind) != 0.15 || p.Get(params.SeaSpeed) != 1.1 {
		t.Fatalf("unexpected ocean_flow: %v", p.Values())
	}
	if p.Get(params.VolDrone) != 0 || p.Get(params.VolPink) != 0 || p.Get(params.VolSynth) != 0 {
		t.Fatalf("ocean_flow should silence drone, pink and synth")
	}
}

func TestProfilesAreImmutable(t *testing.T) {
	s := NewStore()
	p, _ := s.Get("beta_boost")
	v := p.Values()
	v[params.VolBinaural] = 0
	again, _ := s.Get("beta_boost")
	if again.Get(params.VolBinaural) != 0.4 {
		t.Fatalf("preset mutated through Values copy")
	}
	ids := s.IDs()
	ids[0] = "x"
	if s.IDs()[0] != "deep_focus" {
		t.Fatalf("preset order mutated through IDs copy")
	}
}

func TestUnknownProfile(t *testing.T) {
	if _, ok := NewStore().Get("nope"); ok {
		t.Fatalf("unknown id should not resolve")
	}
}
