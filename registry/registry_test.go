package registry

import (
	"context"
	"testing"

	"github.com/cargomesh/cargomesh/agent"
	"github.com/cargomesh/cargomesh/core"
	"github.com/cargomesh/cargomesh/oracle"
	"github.com/cargomesh/cargomesh/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAgent(domain core.Domain, keywords ...string) agent.DomainAgent {
	return agent.New(agent.Spec{
		Domain:       domain,
		Description:  string(domain) + " test agent",
		Keywords:     keywords,
		SystemPrompt: "test",
		BuildTools: func() []tool.Tool {
			return []tool.Tool{tool.NewFunctionTool("noop", "does nothing", nil,
				func(ctx context.Context, args map[string]any) (string, error) { return "", nil })}
		},
	}, oracle.NewMock())
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := New(nil)
	fleet := testAgent(core.DomainFleet, "차량", "vehicle")
	require.NoError(t, r.Register(fleet))

	got, err := r.Get(core.DomainFleet)
	require.NoError(t, err)
	assert.Same(t, fleet, got)

	_, err = r.Get(core.DomainWarehouse)
	assert.ErrorIs(t, err, core.ErrAgentNotFound)
}

func TestRegistry_RejectsUnknownDomain(t *testing.T) {
	r := New(nil)
	err := r.Register(testAgent(core.DomainUnknown))
	assert.ErrorIs(t, err, ErrUnknownDomain)
	err = r.Register(testAgent(core.Domain("finance")))
	assert.ErrorIs(t, err, ErrUnknownDomain)
}

func TestRegistry_ReplaceRebuildsKeywordIndex(t *testing.T) {
	r := New(nil)
	require.NoError(t, r.Register(testAgent(core.DomainFleet, "vehicle", "oldword")))
	require.NoError(t, r.Register(testAgent(core.DomainFleet, "vehicle")))

	_, ok := r.RouteByKeywords("mentions oldword here")
	assert.False(t, ok, "replaced agent's keywords must leave the index")

	domain, ok := r.RouteByKeywords("my vehicle broke down")
	assert.True(t, ok)
	assert.Equal(t, core.DomainFleet, domain)
}

func TestRegistry_Unregister(t *testing.T) {
	r := New(nil)
	mem := testAgent(core.DomainMemory, "remember")
	require.NoError(t, r.Register(mem))

	removed := r.Unregister(core.DomainMemory)
	assert.Same(t, mem, removed)

	_, err := r.Get(core.DomainMemory)
	assert.ErrorIs(t, err, core.ErrAgentNotFound)
	_, ok := r.RouteByKeywords("remember this")
	assert.False(t, ok)

	assert.Nil(t, r.Unregister(core.DomainMemory))
}

func TestRegistry_GetByName(t *testing.T) {
	r := New(nil)
	fleet := testAgent(core.DomainFleet, "차량")
	require.NoError(t, r.Register(fleet))

	got, err := r.GetByName("FLEET")
	require.NoError(t, err)
	assert.Same(t, fleet, got)

	_, err = r.GetByName("finance")
	assert.ErrorIs(t, err, core.ErrAgentNotFound)
}

func TestRegistry_RouteByKeywords(t *testing.T) {
	r := New(nil)
	require.NoError(t, r.Register(testAgent(core.DomainFleet, "정비")))
	require.NoError(t, r.Register(testAgent(core.DomainTransport, "배송")))

	domain, ok := r.RouteByKeywords("정비 일정 알려줘")
	require.True(t, ok)
	assert.Equal(t, core.DomainFleet, domain)

	_, ok = r.RouteByKeywords("hello there")
	assert.False(t, ok)
}

func TestRegistry_ListingsAndInfo(t *testing.T) {
	r := New(nil)
	require.NoError(t, r.Register(testAgent(core.DomainWarehouse, "재고")))
	require.NoError(t, r.Register(testAgent(core.DomainFleet, "차량")))

	assert.Equal(t, []core.Domain{core.DomainFleet, core.DomainWarehouse}, r.ListDomains())

	agents := r.ListAgents()
	require.Len(t, agents, 2)
	assert.Equal(t, core.DomainFleet, agents[0].Domain())

	info := r.Info()
	require.Len(t, info, 2)
	assert.Equal(t, core.DomainFleet, info[0].Domain)
	assert.Equal(t, 1, info[0].ToolCount)
	assert.Equal(t, []string{"차량"}, info[0].Keywords)

	tables := r.KeywordTables()
	assert.Equal(t, []string{"재고"}, tables[core.DomainWarehouse])

	listing := r.DomainListing()
	assert.Contains(t, listing, "- fleet: fleet test agent")
	assert.Contains(t, listing, "- warehouse: warehouse test agent")
}
