// Package testing provides a harness for exercising widget trees without a
// runner or render backend.
//
// # Quick Start
//
// Create a tester, pump a widget, and make assertions:
//
//	func TestMyWidget(t *testing.T) {
//	    tester := retaintest.NewWidgetTesterWithT(t)
//	    if err := tester.PumpWidget(MyWidget{}); err != nil {
//	        t.Fatal(err)
//	    }
//
//	    label := tester.Find(retaintest.ByType[Label]()).First()
//
//	    // Pumping a new configuration reconciles against the mounted tree.
//	    tester.PumpWidget(MyWidget{Title: "next"})
//	    if tester.Find(retaintest.ByType[Label]()).First() != label {
//	        t.Error("expected the label element to be reused")
//	    }
//	}
//
// # Lifecycle Recording
//
// [LifecycleLog] collects ordered events from states and render objects, and
// [RecordingRenderObject] records the child lists the tree hands it.
//
// # Snapshot Testing
//
// Capture the element tree and compare it with a golden file:
//
//	snapshot := tester.CaptureSnapshot()
//	snapshot.MatchesFile(t, "testdata/my_widget.snapshot.yaml")
//
// Update snapshots with:
//
//	RETAIN_UPDATE_SNAPSHOTS=1 go test ./...
//
// # Import Alias
//
// Since this package has the same name as the standard library testing
// package, import it with an alias:
//
//	import retaintest "github.com/go-drift/retain/pkg/testing"
package testing
