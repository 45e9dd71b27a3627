package biz_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/kart-io/ai-router/internal/airouter/biz"
	"github.com/kart-io/ai-router/pkg/utils/errors"
)

func handlerFor(intent, module string) biz.Handler {
	return biz.HandlerFunc{
		Desc: biz.Descriptor{Intent: intent, Module: module, Description: intent},
		Fn: func(context.Context, biz.Params, int64) (string, error) {
			return intent, nil
		},
	}
}

func TestNewRegistry(t *testing.T) {
	r, err := biz.NewRegistry(
		handlerFor("error_lookup", "terminal_errors"),
		handlerFor("ticket_status", "tickets"),
		handlerFor("ticket_create", "tickets"),
	)
	require.NoError(t, err)

	h, ok := r.Lookup("ticket_status")
	require.True(t, ok)
	assert.Equal(t, "tickets", h.Descriptor().Module)
	_, ok = r.Lookup("general_chat")
	assert.False(t, ok)

	assert.Equal(t, sets.New("terminal_errors", "tickets"), r.Modules())
	assert.Equal(t, []string{"error_lookup", "ticket_status", "ticket_create"}, r.Intents())

	descs := r.Descriptors(sets.New("tickets"))
	require.Len(t, descs, 2)
	assert.Equal(t, "ticket_status", descs[0].Intent)
	assert.Equal(t, "ticket_create", descs[1].Intent)

	specs := biz.IntentSpecs(descs)
	assert.Equal(t, "ticket_create", specs[1].Intent)

	// 返回副本
	r.Modules().Insert("other")
	assert.False(t, r.Modules().Has("other"))
}

func TestNewRegistry_Rejects(t *testing.T) {
	tests := []struct {
		name     string
		handlers []biz.Handler
		code     int
	}{
		{"重复意图", []biz.Handler{handlerFor("error_lookup", "a"), handlerFor("error_lookup", "b")}, errors.ErrDuplicateIntent.Code},
		{"保留意图", []biz.Handler{handlerFor("general_chat", "a")}, errors.ErrInvalidParams.Code},
		{"非法名称", []biz.Handler{handlerFor("Error Lookup", "a")}, errors.ErrInvalidParams.Code},
		{"缺少模块", []biz.Handler{handlerFor("error_lookup", "")}, errors.ErrInvalidParams.Code},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := biz.NewRegistry(tt.handlers...)
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, tt.code), err.Error())
		})
	}
}

func TestStaticGate(t *testing.T) {
	g := biz.NewStaticGate(biz.ModuleAIRouter, "tickets")

	assert.True(t, g.IsModuleEnabled("tickets"))
	assert.False(t, g.IsModuleEnabled("terminal_errors"))
	assert.Equal(t, sets.New(biz.ModuleAIRouter, "tickets"), g.EnabledModules())

	g.SetEnabled("tickets", false)
	g.SetEnabled("terminal_errors", true)
	assert.Equal(t, sets.New(biz.ModuleAIRouter, "terminal_errors"), g.EnabledModules())
}

func TestStaticGate_Concurrent(t *testing.T) {
	g := biz.NewStaticGate()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(on bool) {
			defer wg.Done()
			g.SetEnabled("tickets", on)
		}(i%2 == 0)
		go func() {
			defer wg.Done()
			_ = g.IsModuleEnabled("tickets")
			_ = g.EnabledModules()
		}()
	}
	wg.Wait()
	g.SetEnabled("tickets", true)
	assert.True(t, g.IsModuleEnabled("tickets"))
}
