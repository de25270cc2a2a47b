package testing_test

import (
	"testing"

	"github.com/sourcegraph/conc"
	"github.com/stretchr/testify/assert"

	"github.com/go-drift/retain/pkg/layout"
	retaintest "github.com/go-drift/retain/pkg/testing"
)

func TestLifecycleLog_ConcurrentAdd(t *testing.T) {
	log := &retaintest.LifecycleLog{}
	var wg conc.WaitGroup
	for i := range 16 {
		wg.Go(func() { log.Add("event %d", i) })
	}
	wg.Wait()

	assert.Equal(t, 16, log.Len())
	assert.Len(t, log.Take(), 16)
	assert.Zero(t, log.Len())
	assert.Empty(t, log.Entries())
}

func TestRecordingRenderObject(t *testing.T) {
	log := &retaintest.LifecycleLog{}
	parent := retaintest.NewRecordingRenderObject("parent", log)
	child := retaintest.NewRecordingRenderObject("child", log)
	var pipeline layout.PipelineOwner
	child.SetOwner(&pipeline)

	parent.SetChildren([]layout.RenderObject{child})
	assert.Equal(t, []string{"child"}, parent.ChildNames())
	assert.Equal(t, 1, parent.ChildUpdates())
	assert.Equal(t, 1, pipeline.DirtyLayoutCount())

	child.Dispose()
	child.Dispose()
	assert.True(t, child.Disposed())
	assert.Zero(t, pipeline.DirtyLayoutCount(), "disposed objects leave the pipeline")
	assert.Equal(t, []string{"parent children [child]", "child dispose"}, log.Entries())
	assert.Equal(t, "child", child.String())
}
