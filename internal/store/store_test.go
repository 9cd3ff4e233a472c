package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/marvinkome/mediay/internal/db"
	"github.com/marvinkome/mediay/internal/models"
	"github.com/marvinkome/mediay/internal/rules"
	"github.com/marvinkome/mediay/internal/secrets"
	"gorm.io/gorm"
)

func testStore(t *testing.T) (*Store, *gorm.DB) {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "mediay-test.db")
	conn, err := db.Open(dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	cipher, errCipher := secrets.NewCipher(key)
	if errCipher != nil {
		t.Fatalf("new cipher: %v", errCipher)
	}
	return New(conn, cipher), conn
}

func createUser(t *testing.T, conn *gorm.DB, email string) uint64 {
	t.Helper()
	user := models.User{Email: email}
	if errCreate := conn.Create(&user).Error; errCreate != nil {
		t.Fatalf("create user %s: %v", email, errCreate)
	}
	return user.ID
}

func TestCreateGroup_CreatorBecomesAdmin(t *testing.T) {
	s, conn := testStore(t)
	ctx := context.Background()
	alice := createUser(t, conn, "alice@example.com")

	group, err := s.CreateGroup(ctx, alice, "flatmates", "shared subs", nil)
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}

	var member models.GroupMember
	if errFind := conn.Where("group_id = ? AND user_id = ?", group.ID, alice).First(&member).Error; errFind != nil {
		t.Fatalf("find member: %v", errFind)
	}
	if !member.IsAdmin {
		t.Fatalf("expected creator to be admin")
	}
}

func TestCreateGroup_WithServicesEncryptsInstructions(t *testing.T) {
	s, conn := testStore(t)
	ctx := context.Background()
	alice := createUser(t, conn, "alice@example.com")

	group, err := s.CreateGroup(ctx, alice, "flatmates", "", []ServiceInput{
		{Name: "netflix", Cost: 15.99, NumberOfPeople: 4, Instructions: "login: a@b.c / pass"},
	})
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}

	var service models.Service
	if errFind := conn.Where("group_id = ?", group.ID).First(&service).Error; errFind != nil {
		t.Fatalf("find service: %v", errFind)
	}
	if service.Instructions == "login: a@b.c / pass" {
		t.Fatalf("instructions stored in plaintext")
	}

	views, errList := s.ListServices(ctx, group.ID, alice)
	if errList != nil {
		t.Fatalf("ListServices: %v", errList)
	}
	if len(views) != 1 || views[0].Instructions == nil || *views[0].Instructions != "login: a@b.c / pass" {
		t.Fatalf("expected member to read decrypted instructions, got %+v", views)
	}

	var creator models.ServiceUser
	if errFind := conn.Where("service_id = ? AND user_id = ?", service.ID, alice).First(&creator).Error; errFind != nil {
		t.Fatalf("find creator row: %v", errFind)
	}
	if !creator.IsCreator {
		t.Fatalf("expected creator flag set")
	}
}

func TestCreateGroup_ValidationBeforeWrite(t *testing.T) {
	s, conn := testStore(t)
	ctx := context.Background()
	alice := createUser(t, conn, "alice@example.com")

	_, err := s.CreateGroup(ctx, alice, "bad", "", []ServiceInput{
		{Name: "netflix", NumberOfPeople: 0},
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}

	var count int64
	conn.Model(&models.Group{}).Count(&count)
	if count != 0 {
		t.Fatalf("expected no group persisted from bad input, got %d", count)
	}
}

func TestRequestToJoin_Guards(t *testing.T) {
	s, conn := testStore(t)
	ctx := context.Background()
	alice := createUser(t, conn, "alice@example.com")
	bob := createUser(t, conn, "bob@example.com")

	group, err := s.CreateGroup(ctx, alice, "flatmates", "", nil)
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}

	if errJoin := s.RequestToJoin(ctx, group.ID, bob); errJoin != nil {
		t.Fatalf("RequestToJoin: %v", errJoin)
	}
	if errJoin := s.RequestToJoin(ctx, group.ID, bob); !errors.Is(errJoin, rules.ErrAlreadyRequested) {
		t.Fatalf("expected ErrAlreadyRequested, got %v", errJoin)
	}
	if errJoin := s.RequestToJoin(ctx, group.ID, alice); !errors.Is(errJoin, rules.ErrAlreadyMember) {
		t.Fatalf("expected ErrAlreadyMember, got %v", errJoin)
	}
	if errJoin := s.RequestToJoin(ctx, 999, bob); !errors.Is(errJoin, rules.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing group, got %v", errJoin)
	}
}

func TestAcceptJoinRequest_ConsumesRequestAndCreatesMember(t *testing.T) {
	s, conn := testStore(t)
	ctx := context.Background()
	alice := createUser(t, conn, "alice@example.com")
	bob := createUser(t, conn, "bob@example.com")

	group, _ := s.CreateGroup(ctx, alice, "flatmates", "", nil)
	if errJoin := s.RequestToJoin(ctx, group.ID, bob); errJoin != nil {
		t.Fatalf("RequestToJoin: %v", errJoin)
	}

	if errAccept := s.AcceptJoinRequest(ctx, group.ID, bob); errAccept != nil {
		t.Fatalf("AcceptJoinRequest: %v", errAccept)
	}

	var requestCount int64
	conn.Model(&models.GroupRequest{}).Where("group_id = ?", group.ID).Count(&requestCount)
	if requestCount != 0 {
		t.Fatalf("expected request consumed, %d left", requestCount)
	}
	var member models.GroupMember
	if errFind := conn.Where("group_id = ? AND user_id = ?", group.ID, bob).First(&member).Error; errFind != nil {
		t.Fatalf("find member: %v", errFind)
	}
	if member.IsAdmin {
		t.Fatalf("accepted member must not be admin")
	}

	if errAccept := s.AcceptJoinRequest(ctx, group.ID, bob); !errors.Is(errAccept, rules.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for consumed request, got %v", errAccept)
	}
}

func TestDeclineJoinRequest(t *testing.T) {
	s, conn := testStore(t)
	ctx := context.Background()
	alice := createUser(t, conn, "alice@example.com")
	bob := createUser(t, conn, "bob@example.com")

	group, _ := s.CreateGroup(ctx, alice, "flatmates", "", nil)
	if errJoin := s.RequestToJoin(ctx, group.ID, bob); errJoin != nil {
		t.Fatalf("RequestToJoin: %v", errJoin)
	}
	if errDecline := s.DeclineJoinRequest(ctx, group.ID, bob); errDecline != nil {
		t.Fatalf("DeclineJoinRequest: %v", errDecline)
	}

	var memberCount int64
	conn.Model(&models.GroupMember{}).Where("group_id = ? AND user_id = ?", group.ID, bob).Count(&memberCount)
	if memberCount != 0 {
		t.Fatalf("declined user must not become a member")
	}
	if errDecline := s.DeclineJoinRequest(ctx, group.ID, bob); !errors.Is(errDecline, rules.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", errDecline)
	}
}

func TestJoinService_CapacityEnforced(t *testing.T) {
	s, conn := testStore(t)
	ctx := context.Background()
	alice := createUser(t, conn, "alice@example.com")
	bob := createUser(t, conn, "bob@example.com")
	carol := createUser(t, conn, "carol@example.com")

	group, _ := s.CreateGroup(ctx, alice, "flatmates", "", nil)
	for _, uid := range []uint64{bob, carol} {
		if errJoin := s.RequestToJoin(ctx, group.ID, uid); errJoin != nil {
			t.Fatalf("RequestToJoin: %v", errJoin)
		}
		if errAccept := s.AcceptJoinRequest(ctx, group.ID, uid); errAccept != nil {
			t.Fatalf("AcceptJoinRequest: %v", errAccept)
		}
	}

	view, errAdd := s.AddService(ctx, group.ID, alice, ServiceInput{
		Name: "spotify", Cost: 9.99, NumberOfPeople: 2, Instructions: "family code 1234",
	})
	if errAdd != nil {
		t.Fatalf("AddService: %v", errAdd)
	}

	if errJoin := s.JoinService(ctx, view.ID, bob); errJoin != nil {
		t.Fatalf("JoinService bob: %v", errJoin)
	}
	if errJoin := s.JoinService(ctx, view.ID, carol); !errors.Is(errJoin, rules.ErrServiceFull) {
		t.Fatalf("expected ErrServiceFull, got %v", errJoin)
	}
	if errJoin := s.JoinService(ctx, view.ID, bob); !errors.Is(errJoin, rules.ErrAlreadyMember) {
		t.Fatalf("expected ErrAlreadyMember, got %v", errJoin)
	}
}

func TestUpdateService_CannotShrinkBelowSubscribers(t *testing.T) {
	s, conn := testStore(t)
	ctx := context.Background()
	alice := createUser(t, conn, "alice@example.com")
	bob := createUser(t, conn, "bob@example.com")

	group, _ := s.CreateGroup(ctx, alice, "flatmates", "", nil)
	if errJoin := s.RequestToJoin(ctx, group.ID, bob); errJoin != nil {
		t.Fatalf("RequestToJoin: %v", errJoin)
	}
	if errAccept := s.AcceptJoinRequest(ctx, group.ID, bob); errAccept != nil {
		t.Fatalf("AcceptJoinRequest: %v", errAccept)
	}

	view, errAdd := s.AddService(ctx, group.ID, alice, ServiceInput{
		Name: "spotify", Cost: 9.99, NumberOfPeople: 2, Instructions: "family code 1234",
	})
	if errAdd != nil {
		t.Fatalf("AddService: %v", errAdd)
	}
	if errJoin := s.JoinService(ctx, view.ID, bob); errJoin != nil {
		t.Fatalf("JoinService bob: %v", errJoin)
	}

	one := 1
	errShrink := s.UpdateService(ctx, view.ID, ServiceUpdate{NumberOfPeople: &one})
	if !errors.Is(errShrink, ErrValidation) {
		t.Fatalf("expected ErrValidation for shrink below subscriber count, got %v", errShrink)
	}

	var service models.Service
	if errFind := conn.First(&service, view.ID).Error; errFind != nil {
		t.Fatalf("reload service: %v", errFind)
	}
	if service.NumberOfPeople != 2 {
		t.Fatalf("expected capacity unchanged at 2, got %d", service.NumberOfPeople)
	}

	// shrinking to exactly the subscriber count is allowed
	two := 2
	if errUpdate := s.UpdateService(ctx, view.ID, ServiceUpdate{NumberOfPeople: &two}); errUpdate != nil {
		t.Fatalf("UpdateService to current count: %v", errUpdate)
	}
}

func TestJoinService_RequiresGroupMembership(t *testing.T) {
	s, conn := testStore(t)
	ctx := context.Background()
	alice := createUser(t, conn, "alice@example.com")
	mallory := createUser(t, conn, "mallory@example.com")

	group, _ := s.CreateGroup(ctx, alice, "flatmates", "", nil)
	view, errAdd := s.AddService(ctx, group.ID, alice, ServiceInput{
		Name: "netflix", Cost: 15.99, NumberOfPeople: 4, Instructions: "x",
	})
	if errAdd != nil {
		t.Fatalf("AddService: %v", errAdd)
	}

	if errJoin := s.JoinService(ctx, view.ID, mallory); !errors.Is(errJoin, rules.ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized, got %v", errJoin)
	}
}

func TestLeaveService(t *testing.T) {
	s, conn := testStore(t)
	ctx := context.Background()
	alice := createUser(t, conn, "alice@example.com")
	bob := createUser(t, conn, "bob@example.com")

	group, _ := s.CreateGroup(ctx, alice, "flatmates", "", nil)
	if errJoin := s.RequestToJoin(ctx, group.ID, bob); errJoin != nil {
		t.Fatalf("RequestToJoin: %v", errJoin)
	}
	if errAccept := s.AcceptJoinRequest(ctx, group.ID, bob); errAccept != nil {
		t.Fatalf("AcceptJoinRequest: %v", errAccept)
	}
	view, _ := s.AddService(ctx, group.ID, alice, ServiceInput{Name: "hbo", Cost: 10, NumberOfPeople: 3, Instructions: "x"})

	if errJoin := s.JoinService(ctx, view.ID, bob); errJoin != nil {
		t.Fatalf("JoinService: %v", errJoin)
	}
	if errLeave := s.LeaveService(ctx, view.ID, bob); errLeave != nil {
		t.Fatalf("LeaveService: %v", errLeave)
	}
	if errLeave := s.LeaveService(ctx, view.ID, bob); !errors.Is(errLeave, rules.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after leaving, got %v", errLeave)
	}
	if errLeave := s.LeaveService(ctx, view.ID, alice); !errors.Is(errLeave, rules.ErrNotAuthorized) {
		t.Fatalf("creator leaving own service: expected ErrNotAuthorized, got %v", errLeave)
	}
}

func TestRemoveService_CascadesSubscribers(t *testing.T) {
	s, conn := testStore(t)
	ctx := context.Background()
	alice := createUser(t, conn, "alice@example.com")

	group, _ := s.CreateGroup(ctx, alice, "flatmates", "", nil)
	view, _ := s.AddService(ctx, group.ID, alice, ServiceInput{Name: "hulu", Cost: 8, NumberOfPeople: 2, Instructions: "x"})

	if errRemove := s.RemoveService(ctx, view.ID); errRemove != nil {
		t.Fatalf("RemoveService: %v", errRemove)
	}
	var userCount int64
	conn.Model(&models.ServiceUser{}).Where("service_id = ?", view.ID).Count(&userCount)
	if userCount != 0 {
		t.Fatalf("expected no subscriber rows after removal, got %d", userCount)
	}
	if _, errGet := s.GetService(ctx, view.ID); !errors.Is(errGet, rules.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", errGet)
	}
}

func TestRemoveGroupMember_CascadesOwnedServices(t *testing.T) {
	s, conn := testStore(t)
	ctx := context.Background()
	alice := createUser(t, conn, "alice@example.com")
	bob := createUser(t, conn, "bob@example.com")

	group, _ := s.CreateGroup(ctx, alice, "flatmates", "", nil)
	if errJoin := s.RequestToJoin(ctx, group.ID, bob); errJoin != nil {
		t.Fatalf("RequestToJoin: %v", errJoin)
	}
	if errAccept := s.AcceptJoinRequest(ctx, group.ID, bob); errAccept != nil {
		t.Fatalf("AcceptJoinRequest: %v", errAccept)
	}

	// Bob creates a service Alice joins, and joins one of Alice's.
	bobSvc, errAdd := s.AddService(ctx, group.ID, bob, ServiceInput{Name: "disney", Cost: 7, NumberOfPeople: 3, Instructions: "bob's login"})
	if errAdd != nil {
		t.Fatalf("AddService bob: %v", errAdd)
	}
	if errJoin := s.JoinService(ctx, bobSvc.ID, alice); errJoin != nil {
		t.Fatalf("JoinService alice->disney: %v", errJoin)
	}
	aliceSvc, errAdd := s.AddService(ctx, group.ID, alice, ServiceInput{Name: "spotify", Cost: 10, NumberOfPeople: 2, Instructions: "alice's login"})
	if errAdd != nil {
		t.Fatalf("AddService alice: %v", errAdd)
	}
	if errJoin := s.JoinService(ctx, aliceSvc.ID, bob); errJoin != nil {
		t.Fatalf("JoinService bob->spotify: %v", errJoin)
	}

	if errRemove := s.RemoveGroupMember(ctx, group.ID, bob); errRemove != nil {
		t.Fatalf("RemoveGroupMember: %v", errRemove)
	}

	// Bob's service is gone with all its subscriber rows.
	if _, errGet := s.GetService(ctx, bobSvc.ID); !errors.Is(errGet, rules.ErrNotFound) {
		t.Fatalf("expected bob's service deleted, got %v", errGet)
	}
	var orphanCount int64
	conn.Model(&models.ServiceUser{}).Where("service_id = ?", bobSvc.ID).Count(&orphanCount)
	if orphanCount != 0 {
		t.Fatalf("expected no orphaned subscriber rows, got %d", orphanCount)
	}

	// Alice's service survives with bob's subscription removed.
	svc, errGet := s.GetService(ctx, aliceSvc.ID)
	if errGet != nil {
		t.Fatalf("GetService alice's: %v", errGet)
	}
	if len(svc.Users) != 1 || svc.Users[0].UserID != alice {
		t.Fatalf("expected only alice subscribed, got %+v", svc.Users)
	}

	var memberCount int64
	conn.Model(&models.GroupMember{}).Where("group_id = ? AND user_id = ?", group.ID, bob).Count(&memberCount)
	if memberCount != 0 {
		t.Fatalf("expected bob's membership removed")
	}
}

func TestLeaveGroup_AdminRejected(t *testing.T) {
	s, conn := testStore(t)
	ctx := context.Background()
	alice := createUser(t, conn, "alice@example.com")
	bob := createUser(t, conn, "bob@example.com")

	group, _ := s.CreateGroup(ctx, alice, "flatmates", "", nil)
	if errJoin := s.RequestToJoin(ctx, group.ID, bob); errJoin != nil {
		t.Fatalf("RequestToJoin: %v", errJoin)
	}
	if errAccept := s.AcceptJoinRequest(ctx, group.ID, bob); errAccept != nil {
		t.Fatalf("AcceptJoinRequest: %v", errAccept)
	}

	if errLeave := s.LeaveGroup(ctx, group.ID, alice); !errors.Is(errLeave, rules.ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized for admin leave, got %v", errLeave)
	}
	if errLeave := s.LeaveGroup(ctx, group.ID, bob); errLeave != nil {
		t.Fatalf("LeaveGroup bob: %v", errLeave)
	}
	if errLeave := s.LeaveGroup(ctx, group.ID, bob); !errors.Is(errLeave, rules.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after leaving, got %v", errLeave)
	}
}

func TestListGroupsForUser_NameFilter(t *testing.T) {
	s, conn := testStore(t)
	ctx := context.Background()
	alice := createUser(t, conn, "alice@example.com")

	if _, errCreate := s.CreateGroup(ctx, alice, "Flatmates", "", nil); errCreate != nil {
		t.Fatalf("CreateGroup: %v", errCreate)
	}
	if _, errCreate := s.CreateGroup(ctx, alice, "work crew", "", nil); errCreate != nil {
		t.Fatalf("CreateGroup: %v", errCreate)
	}

	all, errList := s.ListGroupsForUser(ctx, alice, "")
	if errList != nil {
		t.Fatalf("ListGroupsForUser: %v", errList)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(all))
	}

	filtered, errFilter := s.ListGroupsForUser(ctx, alice, "flat")
	if errFilter != nil {
		t.Fatalf("ListGroupsForUser filtered: %v", errFilter)
	}
	if len(filtered) != 1 || filtered[0].Name != "Flatmates" {
		t.Fatalf("expected case-insensitive match on Flatmates, got %+v", filtered)
	}
}

func TestListServices_NonMemberGetsNoInstructions(t *testing.T) {
	s, conn := testStore(t)
	ctx := context.Background()
	alice := createUser(t, conn, "alice@example.com")
	eve := createUser(t, conn, "eve@example.com")

	group, _ := s.CreateGroup(ctx, alice, "flatmates", "", []ServiceInput{
		{Name: "netflix", Cost: 15.99, NumberOfPeople: 4, Instructions: "secret login"},
	})

	views, errList := s.ListServices(ctx, group.ID, eve)
	if errList != nil {
		t.Fatalf("ListServices: %v", errList)
	}
	if len(views) != 1 {
		t.Fatalf("expected 1 service, got %d", len(views))
	}
	if views[0].Instructions != nil {
		t.Fatalf("non-member must not receive instructions, got %q", *views[0].Instructions)
	}
}

// Full flow: group with a single-seat service fills up on creation, so a
// newly accepted member cannot join it.
func TestScenario_SingleSeatServiceFull(t *testing.T) {
	s, conn := testStore(t)
	ctx := context.Background()
	alice := createUser(t, conn, "alice@example.com")
	bob := createUser(t, conn, "bob@example.com")

	group, err := s.CreateGroup(ctx, alice, "movie night", "", nil)
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	view, errAdd := s.AddService(ctx, group.ID, alice, ServiceInput{
		Name: "netflix", Cost: 15.99, NumberOfPeople: 1, Instructions: "only seat taken",
	})
	if errAdd != nil {
		t.Fatalf("AddService: %v", errAdd)
	}

	if errJoin := s.RequestToJoin(ctx, group.ID, bob); errJoin != nil {
		t.Fatalf("RequestToJoin: %v", errJoin)
	}
	if errAccept := s.AcceptJoinRequest(ctx, group.ID, bob); errAccept != nil {
		t.Fatalf("AcceptJoinRequest: %v", errAccept)
	}

	if errJoin := s.JoinService(ctx, view.ID, bob); !errors.Is(errJoin, rules.ErrServiceFull) {
		t.Fatalf("expected ErrServiceFull, got %v", errJoin)
	}
}

// Full flow: removing a member frees their seat and revokes their access to
// the decrypted instructions.
func TestScenario_RemovalFreesSeatAndRevokesAccess(t *testing.T) {
	s, conn := testStore(t)
	ctx := context.Background()
	alice := createUser(t, conn, "alice@example.com")
	bob := createUser(t, conn, "bob@example.com")

	group, _ := s.CreateGroup(ctx, alice, "music", "", nil)
	view, _ := s.AddService(ctx, group.ID, alice, ServiceInput{
		Name: "spotify", Cost: 9.99, NumberOfPeople: 2, Instructions: "family plan code",
	})

	if errJoin := s.RequestToJoin(ctx, group.ID, bob); errJoin != nil {
		t.Fatalf("RequestToJoin: %v", errJoin)
	}
	if errAccept := s.AcceptJoinRequest(ctx, group.ID, bob); errAccept != nil {
		t.Fatalf("AcceptJoinRequest: %v", errAccept)
	}
	if errJoin := s.JoinService(ctx, view.ID, bob); errJoin != nil {
		t.Fatalf("JoinService: %v", errJoin)
	}

	if errRemove := s.RemoveGroupMember(ctx, group.ID, bob); errRemove != nil {
		t.Fatalf("RemoveGroupMember: %v", errRemove)
	}

	svc, errGet := s.GetService(ctx, view.ID)
	if errGet != nil {
		t.Fatalf("GetService: %v", errGet)
	}
	if len(svc.Users) != 1 {
		t.Fatalf("expected subscriber count back to 1, got %d", len(svc.Users))
	}

	views, errList := s.ListServices(ctx, group.ID, bob)
	if errList != nil {
		t.Fatalf("ListServices: %v", errList)
	}
	if views[0].Instructions != nil {
		t.Fatalf("removed member must not read instructions")
	}
}
