package economy

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"github.com/talgya/realm-economy/internal/world"
)

func playedEconomy(t *testing.T) (*Economy, *world.Grid) {
	t.Helper()
	g := lineWorld(t, twoStates(),
		land(world.BiomeHotDesert, 1),
		land(world.BiomeTaiga, 1),
		land(world.BiomeGrassland, 2),
	)
	e := newTestEconomy(t, g)
	e.Build(0, "mine")
	e.Build(1, "mine")
	e.UnlockTech(1, "iron_working")
	e.ProcessTurn()
	e.CreateTradeDeal(1, 2, "gold", turns(5))
	e.ProcessTurn()
	return e, g
}

func TestSnapshot_RoundTrip(t *testing.T) {
	e, g := playedEconomy(t)
	raw, err := e.ExportJSON()
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	restored := New(testCatalog(t))
	if !restored.Load(g, raw) {
		t.Fatalf("load rejected a fresh export")
	}
	if !reflect.DeepEqual(restored.Export(), e.Export()) {
		t.Fatalf("export after load differs")
	}
	if !reflect.DeepEqual(restored.TurnSummary(), e.TurnSummary()) {
		t.Fatalf("derived yields and amenities were not rebuilt")
	}

	// Both continue identically.
	a := e.ProcessTurn()
	b := restored.ProcessTurn()
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("diverged after restore")
	}
}

func TestLoad_RejectsBadInputWithoutChanges(t *testing.T) {
	e, g := playedEconomy(t)
	before := e.Export()

	good, _ := json.Marshal(before)
	cases := map[string]string{
		"empty":           "",
		"not json":        "{turn:",
		"wrong version":   strings.Replace(string(good), `"version":1`, `"version":2`, 1),
		"missing deals":   `{"version":1,"turn":3,"deposits":[],"states":[]}`,
		"unknown field":   strings.Replace(string(good), `"version":1`, `"version":1,"extra":true`, 1),
		"unknown tile":    `{"version":1,"turn":1,"deposits":[{"tile":99,"resource_id":"wheat","improved":false}],"states":[],"deals":[]}`,
		"bad resource":    `{"version":1,"turn":1,"deposits":[{"tile":0,"resource_id":"mithril","improved":false}],"states":[],"deals":[]}`,
		"bad improvement": `{"version":1,"turn":1,"deposits":[{"tile":0,"resource_id":"gold","improved":true,"improvement_id":"farm"}],"states":[],"deals":[]}`,
		"unknown state":   `{"version":1,"turn":1,"deposits":[],"states":[{"state_id":7,"known_tech":[],"stockpiles":{},"caps":{}}],"deals":[]}`,
		"negative stock":  `{"version":1,"turn":1,"deposits":[],"states":[{"state_id":1,"known_tech":[],"stockpiles":{"iron":-1},"caps":{}}],"deals":[]}`,
		"bad deal":        `{"version":1,"turn":1,"deposits":[],"states":[],"deals":[{"id":"x","from_state":1,"to_state":8,"resource_id":"gold","created_turn":0}]}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			if e.Load(g, []byte(raw)) {
				t.Fatalf("expected rejection")
			}
			if !reflect.DeepEqual(e.Export(), before) {
				t.Fatalf("rejected load changed the economy")
			}
		})
	}
}

func TestRestore_FreshStateForMissingRecord(t *testing.T) {
	e, g := playedEconomy(t)
	snap := e.Export()
	snap.States = snap.States[:1]
	snap.Deals = nil

	restored := New(testCatalog(t))
	if !restored.Restore(g, snap) {
		t.Fatalf("restore rejected")
	}
	se, ok := restored.StateEconomy(2)
	if !ok || !se.KnownTech["bronze_working"] || se.Caps["iron"] != 5 {
		t.Fatalf("state 2 must start fresh: %+v", se)
	}
	if restored.Turn() != snap.Turn || !restored.Initialized() {
		t.Fatalf("turn %d initialized %v", restored.Turn(), restored.Initialized())
	}
}
