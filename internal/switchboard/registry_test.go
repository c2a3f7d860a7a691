package switchboard

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/MateDort/switchboard/internal/audit"
	"github.com/MateDort/switchboard/internal/identity"
	"github.com/MateDort/switchboard/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// mockDirectory is an identity.Directory backed by a map.
type mockDirectory map[string]string

func (d mockDirectory) NameByNumber(phoneNumber string) (string, bool) {
	name, ok := d[phoneNumber]
	return name, ok
}

// mockConn is a controllable backend connection.
type mockConn struct {
	mu       sync.Mutex
	injected []string
	injectFn func(text string) error
	closed   bool
	done     chan error
}

func newMockConn() *mockConn {
	return &mockConn{done: make(chan error, 1)}
}

func (c *mockConn) Inject(ctx context.Context, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.injectFn != nil {
		if err := c.injectFn(text); err != nil {
			return err
		}
	}
	c.injected = append(c.injected, text)
	return nil
}

func (c *mockConn) Done() <-chan error { return c.done }

func (c *mockConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *mockConn) wasClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

const (
	operatorNumber = "+15550001111"
	contactNumber  = "+15553334444"
	strangerNumber = "+15559998888"
)

func newTestRegistry(t *testing.T, maxActive int) *Registry {
	t.Helper()
	resolver, err := identity.NewResolver(identity.ResolverOpts{
		OperatorName:   "Mate",
		TrustedNumbers: []string{operatorNumber},
		Directory:      mockDirectory{contactNumber: "Dr. Smith"},
	})
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	reg, err := NewRegistry(RegistryOpts{Resolver: resolver, MaxActive: maxActive})
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	return reg
}

// waitForState polls until the session reaches the state or the deadline hits.
func waitForState(t *testing.T, reg *Registry, id string, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s, ok := reg.ByID(id); ok && s.State == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	s, _ := reg.ByID(id)
	t.Fatalf("session %s state = %s, want %s", id, s.State, want)
}

// --- NewRegistry tests ---

func TestNewRegistry_NilResolver(t *testing.T) {
	_, err := NewRegistry(RegistryOpts{})
	if err == nil {
		t.Fatal("expected error for nil resolver")
	}
}

func TestNewRegistry_DefaultMaxActive(t *testing.T) {
	reg := newTestRegistry(t, 0)
	if reg.MaxActive() != DefaultMaxActive {
		t.Errorf("max active = %d, want %d", reg.MaxActive(), DefaultMaxActive)
	}
}

// --- Create tests ---

func TestCreate_OperatorFirstCallIsPrimary(t *testing.T) {
	reg := newTestRegistry(t, 10)
	s, err := reg.Create(CreateOpts{PhoneNumber: operatorNumber})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if s.Name != "Call with Mate (main)" {
		t.Errorf("name = %q, want Call with Mate (main)", s.Name)
	}
	if !s.Primary {
		t.Error("expected first operator session to be primary")
	}
	if s.Permission != identity.Full {
		t.Errorf("permission = %s, want full", s.Permission)
	}
	if s.State != Pending {
		t.Errorf("state = %s, want pending", s.State)
	}
}

func TestCreate_SecondOperatorCallGetsSuffix(t *testing.T) {
	reg := newTestRegistry(t, 10)
	if _, err := reg.Create(CreateOpts{PhoneNumber: operatorNumber}); err != nil {
		t.Fatalf("create primary: %v", err)
	}
	s, err := reg.Create(CreateOpts{PhoneNumber: operatorNumber})
	if err != nil {
		t.Fatalf("create second: %v", err)
	}
	pattern := regexp.MustCompile(`^Call with Mate \([0-9a-z]{4}\)$`)
	if !pattern.MatchString(s.Name) {
		t.Errorf("name = %q, want suffixed operator name", s.Name)
	}
	if s.Primary {
		t.Error("second operator session must not be primary")
	}
	if s.Permission != identity.Full {
		t.Errorf("permission = %s, want full", s.Permission)
	}
}

func TestCreate_KnownContact(t *testing.T) {
	reg := newTestRegistry(t, 10)
	s, err := reg.Create(CreateOpts{PhoneNumber: contactNumber})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if s.Name != "Call with Dr. Smith" {
		t.Errorf("name = %q, want Call with Dr. Smith", s.Name)
	}
	if s.Permission != identity.Limited {
		t.Errorf("permission = %s, want limited", s.Permission)
	}
	if s.Primary {
		t.Error("limited session must not be primary")
	}
}

func TestCreate_UnknownCaller(t *testing.T) {
	reg := newTestRegistry(t, 10)
	s, err := reg.Create(CreateOpts{PhoneNumber: strangerNumber})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if s.Name != "Call with "+strangerNumber {
		t.Errorf("name = %q, want raw number", s.Name)
	}
	if s.Permission != identity.Limited {
		t.Errorf("permission = %s, want limited", s.Permission)
	}
}

func TestCreate_TargetNameOverridesDisplay(t *testing.T) {
	reg := newTestRegistry(t, 10)
	parent, err := reg.Create(CreateOpts{PhoneNumber: operatorNumber})
	if err != nil {
		t.Fatalf("create parent: %v", err)
	}
	s, err := reg.Create(CreateOpts{
		PhoneNumber: "+15552221212",
		TargetName:  "City Dental",
		Purpose:     "book a cleaning",
		ParentID:    parent.ID,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if s.Name != "Call with City Dental" {
		t.Errorf("name = %q, want Call with City Dental", s.Name)
	}
	if s.ParentID != parent.ID {
		t.Errorf("parent id = %q, want %q", s.ParentID, parent.ID)
	}
	if s.Purpose != "book a cleaning" {
		t.Errorf("purpose = %q", s.Purpose)
	}
}

func TestCreate_EmptyNumberRejected(t *testing.T) {
	reg := newTestRegistry(t, 10)
	if _, err := reg.Create(CreateOpts{}); err == nil {
		t.Fatal("expected error for empty phone number")
	}
}

func TestCreate_UnknownParentRejected(t *testing.T) {
	reg := newTestRegistry(t, 10)
	_, err := reg.Create(CreateOpts{PhoneNumber: strangerNumber, ParentID: "nope"})
	if !errors.Is(err, ErrUnknownParent) {
		t.Fatalf("error = %v, want ErrUnknownParent", err)
	}
}

// --- Capacity tests ---

func TestCreate_CapacityFailFast(t *testing.T) {
	reg := newTestRegistry(t, 3)
	for i := 0; i < 3; i++ {
		if _, err := reg.Create(CreateOpts{PhoneNumber: strangerNumber}); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}
	_, err := reg.Create(CreateOpts{PhoneNumber: operatorNumber})
	if !errors.Is(err, ErrCapacity) {
		t.Fatalf("error = %v, want ErrCapacity", err)
	}
	if reg.LiveCount() != 3 {
		t.Errorf("live count = %d, want 3", reg.LiveCount())
	}
}

func TestCreate_TerminalSessionsFreeCapacity(t *testing.T) {
	reg := newTestRegistry(t, 1)
	s, err := reg.Create(CreateOpts{PhoneNumber: strangerNumber})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := reg.Create(CreateOpts{PhoneNumber: contactNumber}); !errors.Is(err, ErrCapacity) {
		t.Fatalf("error = %v, want ErrCapacity", err)
	}
	if err := reg.Terminate(s.ID, Completed, "hung up"); err != nil {
		t.Fatalf("terminate: %v", err)
	}
	if _, err := reg.Create(CreateOpts{PhoneNumber: contactNumber}); err != nil {
		t.Fatalf("create after terminate: %v", err)
	}
}

func TestCreate_ConcurrentNeverExceedsCap(t *testing.T) {
	const maxLines = 5
	reg := newTestRegistry(t, maxLines)

	var wg sync.WaitGroup
	var mu sync.Mutex
	created, rejected := 0, 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := reg.Create(CreateOpts{PhoneNumber: strangerNumber})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, ErrCapacity):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if created != maxLines {
		t.Errorf("created = %d, want %d", created, maxLines)
	}
	if rejected != 20-maxLines {
		t.Errorf("rejected = %d, want %d", rejected, 20-maxLines)
	}
}

// --- Lifecycle tests ---

func TestActivate(t *testing.T) {
	reg := newTestRegistry(t, 10)
	s, _ := reg.Create(CreateOpts{PhoneNumber: contactNumber})
	conn := newMockConn()
	if err := reg.Activate(s.ID, conn); err != nil {
		t.Fatalf("activate: %v", err)
	}
	got, _ := reg.ByID(s.ID)
	if got.State != Active {
		t.Errorf("state = %s, want active", got.State)
	}
}

func TestActivate_NilConn(t *testing.T) {
	reg := newTestRegistry(t, 10)
	s, _ := reg.Create(CreateOpts{PhoneNumber: contactNumber})
	if err := reg.Activate(s.ID, nil); err == nil {
		t.Fatal("expected error for nil conn")
	}
}

func TestActivate_UnknownSession(t *testing.T) {
	reg := newTestRegistry(t, 10)
	if err := reg.Activate("nope", newMockConn()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestSuspendResume(t *testing.T) {
	reg := newTestRegistry(t, 10)
	s, _ := reg.Create(CreateOpts{PhoneNumber: contactNumber})
	if err := reg.Activate(s.ID, newMockConn()); err != nil {
		t.Fatalf("activate: %v", err)
	}

	if err := reg.Suspend(s.ID); err != nil {
		t.Fatalf("suspend: %v", err)
	}
	got, _ := reg.ByID(s.ID)
	if got.State != Suspended {
		t.Errorf("state = %s, want suspended", got.State)
	}

	if err := reg.Resume(s.ID); err != nil {
		t.Fatalf("resume: %v", err)
	}
	got, _ = reg.ByID(s.ID)
	if got.State != Active {
		t.Errorf("state = %s, want active", got.State)
	}
}

func TestSuspend_PendingRejected(t *testing.T) {
	reg := newTestRegistry(t, 10)
	s, _ := reg.Create(CreateOpts{PhoneNumber: contactNumber})
	if err := reg.Suspend(s.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("error = %v, want ErrInvalidTransition", err)
	}
}

func TestTerminate_ClosesConnAndClearsPrimary(t *testing.T) {
	reg := newTestRegistry(t, 10)
	s, _ := reg.Create(CreateOpts{PhoneNumber: operatorNumber})
	conn := newMockConn()
	if err := reg.Activate(s.ID, conn); err != nil {
		t.Fatalf("activate: %v", err)
	}

	if err := reg.Terminate(s.ID, Completed, "hung up"); err != nil {
		t.Fatalf("terminate: %v", err)
	}
	if !conn.wasClosed() {
		t.Error("expected backend conn to be closed")
	}
	if _, ok := reg.Primary(); ok {
		t.Error("primary designation should be cleared")
	}

	// The next operator call becomes the new primary.
	next, err := reg.Create(CreateOpts{PhoneNumber: operatorNumber})
	if err != nil {
		t.Fatalf("create next: %v", err)
	}
	if !next.Primary {
		t.Error("expected next operator session to become primary")
	}
}

func TestTerminate_TerminalIsImmutable(t *testing.T) {
	reg := newTestRegistry(t, 10)
	s, _ := reg.Create(CreateOpts{PhoneNumber: contactNumber})
	if err := reg.Terminate(s.ID, Failed, "no answer"); err != nil {
		t.Fatalf("terminate: %v", err)
	}
	if err := reg.Terminate(s.ID, Completed, "again"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("error = %v, want ErrInvalidTransition", err)
	}
	if err := reg.Resume(s.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("resume error = %v, want ErrInvalidTransition", err)
	}
	got, _ := reg.ByID(s.ID)
	if got.State != Failed {
		t.Errorf("state = %s, want failed", got.State)
	}
}

func TestTerminate_NonTerminalTargetRejected(t *testing.T) {
	reg := newTestRegistry(t, 10)
	s, _ := reg.Create(CreateOpts{PhoneNumber: contactNumber})
	if err := reg.Terminate(s.ID, Suspended, ""); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("error = %v, want ErrInvalidTransition", err)
	}
}

func TestTerminate_InvokesReporter(t *testing.T) {
	reg := newTestRegistry(t, 10)
	parent, _ := reg.Create(CreateOpts{PhoneNumber: operatorNumber})

	var mu sync.Mutex
	var gotParent string
	var gotEnded Snapshot
	reg.SetReporter(func(parentID string, ended Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		gotParent = parentID
		gotEnded = ended
	})

	child, err := reg.Create(CreateOpts{
		PhoneNumber: "+15552221212",
		TargetName:  "City Dental",
		ParentID:    parent.ID,
	})
	if err != nil {
		t.Fatalf("create child: %v", err)
	}
	if err := reg.Terminate(child.ID, Completed, "done"); err != nil {
		t.Fatalf("terminate: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if gotParent != parent.ID {
		t.Errorf("reporter parent = %q, want %q", gotParent, parent.ID)
	}
	if gotEnded.ID != child.ID {
		t.Errorf("reporter session = %q, want %q", gotEnded.ID, child.ID)
	}
}

func TestMonitorConn_CleanEndCompletes(t *testing.T) {
	reg := newTestRegistry(t, 10)
	s, _ := reg.Create(CreateOpts{PhoneNumber: contactNumber})
	conn := newMockConn()
	if err := reg.Activate(s.ID, conn); err != nil {
		t.Fatalf("activate: %v", err)
	}

	conn.done <- nil
	waitForState(t, reg, s.ID, Completed)
}

func TestMonitorConn_BackendErrorFailsOnlyThatSession(t *testing.T) {
	reg := newTestRegistry(t, 10)
	s1, _ := reg.Create(CreateOpts{PhoneNumber: contactNumber})
	s2, _ := reg.Create(CreateOpts{PhoneNumber: strangerNumber})
	conn1, conn2 := newMockConn(), newMockConn()
	if err := reg.Activate(s1.ID, conn1); err != nil {
		t.Fatalf("activate s1: %v", err)
	}
	if err := reg.Activate(s2.ID, conn2); err != nil {
		t.Fatalf("activate s2: %v", err)
	}

	conn1.done <- errors.New("socket reset")
	waitForState(t, reg, s1.ID, Failed)

	got, _ := reg.ByID(s2.ID)
	if got.State != Active {
		t.Errorf("unrelated session state = %s, want active", got.State)
	}
}

// --- Inject tests ---

func TestInject(t *testing.T) {
	reg := newTestRegistry(t, 10)
	s, _ := reg.Create(CreateOpts{PhoneNumber: contactNumber})
	conn := newMockConn()
	if err := reg.Activate(s.ID, conn); err != nil {
		t.Fatalf("activate: %v", err)
	}

	if err := reg.Inject(context.Background(), s.ID, "hello"); err != nil {
		t.Fatalf("inject: %v", err)
	}
	conn.mu.Lock()
	defer conn.mu.Unlock()
	if len(conn.injected) != 1 || conn.injected[0] != "hello" {
		t.Errorf("injected = %v", conn.injected)
	}
}

func TestInject_PendingRejected(t *testing.T) {
	reg := newTestRegistry(t, 10)
	s, _ := reg.Create(CreateOpts{PhoneNumber: contactNumber})
	if err := reg.Inject(context.Background(), s.ID, "hello"); !errors.Is(err, ErrNotActive) {
		t.Fatalf("error = %v, want ErrNotActive", err)
	}
}

func TestInject_SuspendedRejected(t *testing.T) {
	reg := newTestRegistry(t, 10)
	s, _ := reg.Create(CreateOpts{PhoneNumber: contactNumber})
	if err := reg.Activate(s.ID, newMockConn()); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if err := reg.Suspend(s.ID); err != nil {
		t.Fatalf("suspend: %v", err)
	}
	if err := reg.Inject(context.Background(), s.ID, "hello"); !errors.Is(err, ErrNotActive) {
		t.Fatalf("error = %v, want ErrNotActive", err)
	}
}

// --- Lookup tests ---

func TestByPhone_MostRecentLive(t *testing.T) {
	reg := newTestRegistry(t, 10)
	first, _ := reg.Create(CreateOpts{PhoneNumber: operatorNumber})
	time.Sleep(2 * time.Millisecond)
	second, _ := reg.Create(CreateOpts{PhoneNumber: operatorNumber})

	got, ok := reg.ByPhone("+1 (555) 000-1111")
	if !ok {
		t.Fatal("expected a session")
	}
	if got.ID != second.ID {
		t.Errorf("got %q, want most recent %q", got.ID, second.ID)
	}

	if err := reg.Terminate(second.ID, Completed, ""); err != nil {
		t.Fatalf("terminate: %v", err)
	}
	got, ok = reg.ByPhone(operatorNumber)
	if !ok || got.ID != first.ID {
		t.Errorf("got %q, want surviving %q", got.ID, first.ID)
	}
}

func TestByName_SkipsTerminal(t *testing.T) {
	reg := newTestRegistry(t, 10)
	s, _ := reg.Create(CreateOpts{PhoneNumber: contactNumber})
	if _, ok := reg.ByName("Call with Dr. Smith"); !ok {
		t.Fatal("expected lookup by name to succeed")
	}
	if err := reg.Terminate(s.ID, Completed, ""); err != nil {
		t.Fatalf("terminate: %v", err)
	}
	if _, ok := reg.ByName("Call with Dr. Smith"); ok {
		t.Error("terminal session should not resolve by name")
	}
}

func TestList(t *testing.T) {
	reg := newTestRegistry(t, 10)
	a, _ := reg.Create(CreateOpts{PhoneNumber: contactNumber})
	time.Sleep(2 * time.Millisecond)
	b, _ := reg.Create(CreateOpts{PhoneNumber: strangerNumber})
	if err := reg.Terminate(a.ID, Completed, ""); err != nil {
		t.Fatalf("terminate: %v", err)
	}

	live := reg.List(false)
	if len(live) != 1 || live[0].ID != b.ID {
		t.Errorf("live list = %v", live)
	}

	all := reg.List(true)
	if len(all) != 2 {
		t.Fatalf("full list has %d sessions, want 2", len(all))
	}
	if all[0].ID != a.ID || all[1].ID != b.ID {
		t.Error("expected list ordered by creation time")
	}
}

// --- Audit interaction tests ---

// A stalled audit insert must not hold the registry mutex: capacity checks
// and lookups stay responsive while the durable-log append is in flight.
func TestCreate_AuditWriteRunsOffTheLock(t *testing.T) {
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := gdb.AutoMigrate(&models.CallRecord{}); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	resolver, err := identity.NewResolver(identity.ResolverOpts{
		OperatorName:   "Mate",
		TrustedNumbers: []string{operatorNumber},
		Directory:      mockDirectory{},
	})
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	reg, err := NewRegistry(RegistryOpts{Resolver: resolver, MaxActive: 5, Audit: audit.NewWriter(gdb)})
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	err = gdb.Callback().Create().Before("gorm:create").Register("stall_inserts", func(*gorm.DB) {
		once.Do(func() { close(entered) })
		<-release
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}

	created := make(chan error, 1)
	go func() {
		_, err := reg.Create(CreateOpts{PhoneNumber: operatorNumber})
		created <- err
	}()
	<-entered

	counted := make(chan int, 1)
	go func() { counted <- reg.LiveCount() }()
	select {
	case n := <-counted:
		if n != 1 {
			t.Errorf("live count = %d, want 1", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("registry blocked while the audit insert was in flight")
	}

	close(release)
	if err := <-created; err != nil {
		t.Fatalf("create: %v", err)
	}
}
