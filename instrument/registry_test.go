package instrument

import (
	"testing"

	"github.com/DataExMachina-dev/fiberstack-go/fiber"
	"github.com/stretchr/testify/require"
)

func TestRegistryResolve(t *testing.T) {
	r := NewRegistry()
	r.Register(TypeInfo{
		Name: "app.Transfer",
		Kind: KindFlowLogic,
		Methods: []Method{
			{Name: "Call", Instrumented: true},
			{Name: "helper", Instrumented: true, LocalsEliminated: true},
			{Name: "String"},
		},
	})

	at := func(typ, method string) fiber.Location {
		return fiber.Location{TypeName: typ, MethodName: method, FileName: "transfer.go", Line: 3}
	}
	require.Equal(t, Flag{Known: true}, Resolve(r, at("app.Transfer", "Call")))
	require.Equal(t, Flag{Known: true, LocalsEliminated: true}, Resolve(r, at("app.Transfer", "helper")))
	require.Equal(t, Flag{}, Resolve(r, at("app.Transfer", "String")))
	require.Equal(t, Flag{}, Resolve(r, at("app.Transfer", "missing")))
	require.Equal(t, Flag{}, Resolve(r, at("app.Other", "Call")))
	require.Equal(t, Flag{}, Resolve(nil, at("app.Transfer", "Call")))

	// The entry frame is registered but never instrumented.
	require.Equal(t, Flag{}, Resolve(r, fiber.EntryLocation))
}

func TestRegistryRegisterReplaces(t *testing.T) {
	r := NewRegistry()
	methods := []Method{{Name: "Call", Instrumented: true}}
	r.Register(TypeInfo{Name: "app.Flow", Methods: methods})
	methods[0].LocalsEliminated = true
	eliminated, ok := r.IsLocalsEliminated("app.Flow", "Call")
	require.True(t, ok)
	require.False(t, eliminated)

	r.Register(TypeInfo{Name: "app.Flow", Methods: methods})
	eliminated, ok = r.IsLocalsEliminated("app.Flow", "Call")
	require.True(t, ok)
	require.True(t, eliminated)
}

func TestRegistryKindOf(t *testing.T) {
	r := NewRegistry()
	r.Register(TypeInfo{Name: "engine.Driver", Kind: KindStateMachine})
	r.Register(TypeInfo{Name: "engine.SubDriver", Embeds: []string{"engine.Driver"}})
	r.Register(TypeInfo{Name: "app.Flow", Kind: KindFlowLogic})
	r.Register(TypeInfo{Name: "app.Cycle1", Embeds: []string{"app.Cycle2"}})
	r.Register(TypeInfo{Name: "app.Cycle2", Embeds: []string{"app.Cycle1", "app.Flow"}})

	require.Equal(t, KindStateMachine, r.KindOf(fiber.EntryLocation.TypeName))
	require.Equal(t, KindStateMachine, r.KindOf("engine.SubDriver"))
	require.Equal(t, KindFlowLogic, r.KindOf("app.Cycle1"))
	require.Equal(t, KindPlain, r.KindOf("app.Unknown"))
	require.Equal(t, "state-machine", KindStateMachine.String())
}
