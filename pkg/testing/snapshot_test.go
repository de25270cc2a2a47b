package testing_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-drift/retain/pkg/core"
	retaintest "github.com/go-drift/retain/pkg/testing"
	"github.com/go-drift/retain/pkg/testing/internal/testbed"
)

// fakeT records failures instead of stopping the test.
type fakeT struct {
	fatals []string
	errs   []string
}

func (f *fakeT) Helper()      {}
func (f *fakeT) Name() string { return "TestFake" }
func (f *fakeT) Fatalf(format string, args ...any) {
	f.fatals = append(f.fatals, fmt.Sprintf(format, args...))
}
func (f *fakeT) Errorf(format string, args ...any) {
	f.errs = append(f.errs, fmt.Sprintf(format, args...))
}

func pumpSnapshotTree(t *testing.T, initial int) *retaintest.WidgetTester {
	t.Helper()
	tester := retaintest.NewWidgetTesterWithT(t)
	require.NoError(t, tester.PumpWidget(testbed.Column{Name: "col", Items: []core.Widget{
		testbed.Label{Text: "title", ID: "title"},
		testbed.Counter{Initial: initial},
	}}))
	return tester
}

func TestCaptureSnapshot_DescribesTree(t *testing.T) {
	snap := pumpSnapshotTree(t, 1).CaptureSnapshot()
	require.NotNil(t, snap.Tree)

	assert.Equal(t, "testbed.Column", snap.Tree.WidgetType)
	assert.Equal(t, "*testing.RecordingRenderObject", snap.Tree.RenderObject)
	require.Len(t, snap.Tree.Children, 2)
	assert.Equal(t, "title", snap.Tree.Children[0].Key)
	assert.True(t, snap.Tree.Children[1].HasState)
	assert.Equal(t, 4, snap.Tree.Count())
}

func TestCaptureSnapshot_Empty(t *testing.T) {
	tester := retaintest.NewWidgetTesterWithT(t)
	assert.Nil(t, tester.CaptureSnapshot().Tree)
}

func TestSnapshot_Diff(t *testing.T) {
	a := pumpSnapshotTree(t, 1).CaptureSnapshot()
	b := pumpSnapshotTree(t, 1).CaptureSnapshot()
	assert.Empty(t, a.Diff(b))

	other := retaintest.NewWidgetTesterWithT(t)
	require.NoError(t, other.PumpWidget(testbed.Label{Text: "solo"}))
	assert.Contains(t, a.Diff(other.CaptureSnapshot()), "testbed.Column")
}

func TestSnapshot_MatchesFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "tree.snapshot.yaml")
	snap := pumpSnapshotTree(t, 1).CaptureSnapshot()
	require.NoError(t, snap.UpdateFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "widget: testbed.Column")

	ft := &fakeT{}
	snap.MatchesFile(ft, path)
	assert.Empty(t, ft.fatals)
	assert.Empty(t, ft.errs)
}

func TestSnapshot_MatchesFileMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tree.snapshot.yaml")
	tester := pumpSnapshotTree(t, 1)
	require.NoError(t, tester.CaptureSnapshot().UpdateFile(path))

	require.NoError(t, tester.PumpWidget(testbed.Column{Name: "col", Items: []core.Widget{
		testbed.Label{Text: "title", ID: "renamed"},
		testbed.Counter{Initial: 1},
	}}))

	ft := &fakeT{}
	tester.CaptureSnapshot().MatchesFile(ft, path)
	require.Len(t, ft.errs, 1)
	assert.Contains(t, ft.errs[0], "renamed")
	assert.Contains(t, ft.errs[0], retaintest.UpdateSnapshotsEnv+"=1")
}

func TestSnapshot_MissingFile(t *testing.T) {
	ft := &fakeT{}
	pumpSnapshotTree(t, 1).CaptureSnapshot().MatchesFile(ft, filepath.Join(t.TempDir(), "missing.yaml"))
	require.Len(t, ft.fatals, 1)
	assert.Contains(t, ft.fatals[0], "snapshot file missing")
}

func TestSnapshot_UpdateFromEnv(t *testing.T) {
	t.Setenv(retaintest.UpdateSnapshotsEnv, "1")
	path := filepath.Join(t.TempDir(), "tree.snapshot.yaml")

	ft := &fakeT{}
	pumpSnapshotTree(t, 1).CaptureSnapshot().MatchesFile(ft, path)
	assert.Empty(t, ft.fatals)
	_, err := os.Stat(path)
	assert.NoError(t, err)
}
