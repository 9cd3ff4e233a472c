// Package store is the transactional repository for groups, members,
// requests, and services. Every multi-step mutation runs inside one
// database transaction; capacity-sensitive checks are re-evaluated inside
// the transaction under a row lock so concurrent joins cannot overshoot a
// service's seat count.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	dbutil "github.com/marvinkome/mediay/internal/db"
	"github.com/marvinkome/mediay/internal/models"
	"github.com/marvinkome/mediay/internal/rules"
	"github.com/marvinkome/mediay/internal/secrets"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrValidation indicates a malformed input rejected before any write.
var ErrValidation = errors.New("validation failed")

// ServiceInput carries the fields for creating or updating a service.
// Instructions arrive as plaintext and are encrypted before persistence.
type ServiceInput struct {
	Name           string
	Cost           float64
	NumberOfPeople int
	Instructions   string
}

// ServiceUpdate carries optional fields for a service update.
type ServiceUpdate struct {
	Name           *string
	Cost           *float64
	NumberOfPeople *int
	Instructions   *string
}

// ServiceView is a service as returned to callers. Instructions is plaintext
// and only set when the requesting user is a member of the owning group.
type ServiceView struct {
	ID             uint64
	GroupID        uint64
	Name           string
	Cost           float64
	NumberOfPeople int
	Instructions   *string
	Users          []models.ServiceUser
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Store persists groups and services through one shared gorm connection.
type Store struct {
	db     *gorm.DB
	cipher *secrets.Cipher
}

// New constructs a Store.
func New(db *gorm.DB, cipher *secrets.Cipher) *Store {
	return &Store{db: db, cipher: cipher}
}

// validateServiceInput rejects bad service fields before any write.
func validateServiceInput(in ServiceInput) error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: missing service name", ErrValidation)
	}
	if in.NumberOfPeople < 1 {
		return fmt.Errorf("%w: number of people must be at least 1", ErrValidation)
	}
	if in.Cost < 0 {
		return fmt.Errorf("%w: cost must not be negative", ErrValidation)
	}
	return nil
}

// CreateGroup creates a group, its admin membership for the creator, and
// any initial services in one transaction.
func (s *Store) CreateGroup(ctx context.Context, creatorID uint64, name, notes string, services []ServiceInput) (*models.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: missing group name", ErrValidation)
	}
	for _, in := range services {
		if errValidate := validateServiceInput(in); errValidate != nil {
			return nil, errValidate
		}
	}

	now := time.Now().UTC()
	group := models.Group{Name: name, Notes: strings.TrimSpace(notes), CreatedAt: now, UpdatedAt: now}

	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errCreate := tx.Create(&group).Error; errCreate != nil {
			return errCreate
		}
		admin := models.GroupMember{
			UserID:    creatorID,
			GroupID:   group.ID,
			IsAdmin:   true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if errCreate := tx.Create(&admin).Error; errCreate != nil {
			return errCreate
		}
		for _, in := range services {
			if _, errAdd := s.addServiceTx(tx, group.ID, creatorID, in, now); errAdd != nil {
				return errAdd
			}
		}
		return nil
	})
	if errTx != nil {
		return nil, fmt.Errorf("store: create group: %w", errTx)
	}
	return &group, nil
}

// GetGroup loads a group with members, pending requests, and services.
func (s *Store) GetGroup(ctx context.Context, groupID uint64) (*models.Group, error) {
	var group models.Group
	errFind := s.db.WithContext(ctx).
		Preload("Members.User").
		Preload("Requests.User").
		Preload("Services.Users").
		First(&group, groupID).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, rules.ErrNotFound
		}
		return nil, fmt.Errorf("store: get group: %w", errFind)
	}
	return &group, nil
}

// ListGroupsForUser returns the groups the user belongs to, optionally
// filtered by a case-insensitive name match.
func (s *Store) ListGroupsForUser(ctx context.Context, userID uint64, nameFilter string) ([]models.Group, error) {
	query := s.db.WithContext(ctx).
		Joins("JOIN group_members ON group_members.group_id = groups.id").
		Where("group_members.user_id = ?", userID).
		Preload("Members.User").
		Preload("Services.Users").
		Order("groups.created_at DESC")
	if trimmed := strings.TrimSpace(nameFilter); trimmed != "" {
		pattern := dbutil.NormalizeLikePattern(s.db, "%"+trimmed+"%")
		query = query.Where(dbutil.CaseInsensitiveLikeExpr(s.db, "groups.name"), pattern)
	}

	var groups []models.Group
	if errFind := query.Find(&groups).Error; errFind != nil {
		return nil, fmt.Errorf("store: list groups: %w", errFind)
	}
	return groups, nil
}

// UpdateGroup modifies group name and notes. The caller checks admin rights.
func (s *Store) UpdateGroup(ctx context.Context, groupID uint64, name, notes *string) error {
	updates := map[string]any{"updated_at": time.Now().UTC()}
	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			return fmt.Errorf("%w: missing group name", ErrValidation)
		}
		updates["name"] = trimmed
	}
	if notes != nil {
		updates["notes"] = strings.TrimSpace(*notes)
	}

	res := s.db.WithContext(ctx).Model(&models.Group{}).Where("id = ?", groupID).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("store: update group: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return rules.ErrNotFound
	}
	return nil
}

// RequestToJoin records a pending join request for a non-member.
func (s *Store) RequestToJoin(ctx context.Context, groupID, userID uint64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var group models.Group
		if errFind := tx.First(&group, groupID).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return rules.ErrNotFound
			}
			return fmt.Errorf("store: find group: %w", errFind)
		}

		var members []models.GroupMember
		if errFind := tx.Where("group_id = ?", groupID).Find(&members).Error; errFind != nil {
			return fmt.Errorf("store: load members: %w", errFind)
		}
		var requests []models.GroupRequest
		if errFind := tx.Where("group_id = ?", groupID).Find(&requests).Error; errFind != nil {
			return fmt.Errorf("store: load requests: %w", errFind)
		}
		if errRule := rules.CanJoinGroup(members, requests, userID); errRule != nil {
			return errRule
		}

		now := time.Now().UTC()
		request := models.GroupRequest{UserID: userID, GroupID: groupID, CreatedAt: now, UpdatedAt: now}
		if errCreate := tx.Create(&request).Error; errCreate != nil {
			return fmt.Errorf("store: create request: %w", errCreate)
		}
		return nil
	})
}

// AcceptJoinRequest consumes a pending request and creates a non-admin
// membership, atomically.
func (s *Store) AcceptJoinRequest(ctx context.Context, groupID, userID uint64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("group_id = ? AND user_id = ?", groupID, userID).Delete(&models.GroupRequest{})
		if res.Error != nil {
			return fmt.Errorf("store: delete request: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return rules.ErrNotFound
		}

		now := time.Now().UTC()
		member := models.GroupMember{
			UserID:    userID,
			GroupID:   groupID,
			IsAdmin:   false,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if errCreate := tx.Create(&member).Error; errCreate != nil {
			return fmt.Errorf("store: create member: %w", errCreate)
		}
		return nil
	})
}

// DeclineJoinRequest deletes a pending request without creating a membership.
func (s *Store) DeclineJoinRequest(ctx context.Context, groupID, userID uint64) error {
	res := s.db.WithContext(ctx).Where("group_id = ? AND user_id = ?", groupID, userID).Delete(&models.GroupRequest{})
	if res.Error != nil {
		return fmt.Errorf("store: decline request: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return rules.ErrNotFound
	}
	return nil
}

// RemoveGroupMember deletes a member and everything they own in the group:
// services they created (with all subscriber rows), then their remaining
// subscriptions, then the membership itself. Ordering matters; deleting the
// member first would orphan ServiceUser rows.
func (s *Store) RemoveGroupMember(ctx context.Context, groupID, targetUserID uint64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return removeMemberTx(tx, groupID, targetUserID)
	})
}

// removeMemberTx performs the member-removal cascade inside tx.
func removeMemberTx(tx *gorm.DB, groupID, targetUserID uint64) error {
	var ownedIDs []uint64
	errFind := tx.Model(&models.Service{}).
		Joins("JOIN service_users ON service_users.service_id = services.id").
		Where("services.group_id = ? AND service_users.user_id = ? AND service_users.is_creator = ?", groupID, targetUserID, true).
		Pluck("services.id", &ownedIDs).Error
	if errFind != nil {
		return fmt.Errorf("store: find owned services: %w", errFind)
	}

	if len(ownedIDs) > 0 {
		if errDelete := tx.Where("service_id IN ?", ownedIDs).Delete(&models.ServiceUser{}).Error; errDelete != nil {
			return fmt.Errorf("store: delete service users: %w", errDelete)
		}
		if errDelete := tx.Where("id IN ?", ownedIDs).Delete(&models.Service{}).Error; errDelete != nil {
			return fmt.Errorf("store: delete services: %w", errDelete)
		}
	}

	errDelete := tx.Where(
		"user_id = ? AND service_id IN (?)",
		targetUserID,
		tx.Session(&gorm.Session{NewDB: true}).Model(&models.Service{}).Select("id").Where("group_id = ?", groupID),
	).Delete(&models.ServiceUser{}).Error
	if errDelete != nil {
		return fmt.Errorf("store: delete subscriptions: %w", errDelete)
	}

	res := tx.Where("group_id = ? AND user_id = ?", groupID, targetUserID).Delete(&models.GroupMember{})
	if res.Error != nil {
		return fmt.Errorf("store: delete member: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return rules.ErrNotFound
	}
	return nil
}

// LeaveGroup removes the caller's own membership with the same cascade.
// The group admin cannot leave.
func (s *Store) LeaveGroup(ctx context.Context, groupID, userID uint64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var member models.GroupMember
		errFind := tx.Where("group_id = ? AND user_id = ?", groupID, userID).First(&member).Error
		if errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return rules.ErrNotFound
			}
			return fmt.Errorf("store: find member: %w", errFind)
		}
		if !rules.CanLeaveGroup(&member) {
			return fmt.Errorf("%w: group admin cannot leave", rules.ErrNotAuthorized)
		}
		return removeMemberTx(tx, groupID, userID)
	})
}

// AddService creates a service with encrypted instructions and the creator's
// subscriber row. The returned view carries the plaintext instructions;
// plaintext is never persisted.
func (s *Store) AddService(ctx context.Context, groupID, creatorID uint64, in ServiceInput) (*ServiceView, error) {
	if errValidate := validateServiceInput(in); errValidate != nil {
		return nil, errValidate
	}

	now := time.Now().UTC()
	var service *models.Service
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		created, errAdd := s.addServiceTx(tx, groupID, creatorID, in, now)
		if errAdd != nil {
			return errAdd
		}
		service = created
		return nil
	})
	if errTx != nil {
		return nil, errTx
	}

	plaintext := in.Instructions
	return &ServiceView{
		ID:             service.ID,
		GroupID:        service.GroupID,
		Name:           service.Name,
		Cost:           service.Cost,
		NumberOfPeople: service.NumberOfPeople,
		Instructions:   &plaintext,
		Users:          service.Users,
		CreatedAt:      service.CreatedAt,
		UpdatedAt:      service.UpdatedAt,
	}, nil
}

// addServiceTx creates the service row and its creator subscription in tx.
func (s *Store) addServiceTx(tx *gorm.DB, groupID, creatorID uint64, in ServiceInput, now time.Time) (*models.Service, error) {
	ciphertext, errEncrypt := s.cipher.Encrypt(in.Instructions)
	if errEncrypt != nil {
		return nil, fmt.Errorf("store: encrypt instructions: %w", errEncrypt)
	}

	service := models.Service{
		GroupID:        groupID,
		Name:           strings.TrimSpace(in.Name),
		Cost:           in.Cost,
		NumberOfPeople: in.NumberOfPeople,
		Instructions:   ciphertext,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if errCreate := tx.Create(&service).Error; errCreate != nil {
		return nil, fmt.Errorf("store: create service: %w", errCreate)
	}

	creator := models.ServiceUser{
		UserID:    creatorID,
		ServiceID: service.ID,
		IsCreator: true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if errCreate := tx.Create(&creator).Error; errCreate != nil {
		return nil, fmt.Errorf("store: create service creator: %w", errCreate)
	}
	service.Users = []models.ServiceUser{creator}
	return &service, nil
}

// UpdateService modifies service fields, re-encrypting instructions when
// provided. The caller checks ownership. Shrinking capacity runs under the
// same row lock as JoinService: the new capacity must still cover the
// current subscriber count.
func (s *Store) UpdateService(ctx context.Context, serviceID uint64, in ServiceUpdate) error {
	updates := map[string]any{"updated_at": time.Now().UTC()}
	if in.Name != nil {
		trimmed := strings.TrimSpace(*in.Name)
		if trimmed == "" {
			return fmt.Errorf("%w: missing service name", ErrValidation)
		}
		updates["name"] = trimmed
	}
	if in.Cost != nil {
		if *in.Cost < 0 {
			return fmt.Errorf("%w: cost must not be negative", ErrValidation)
		}
		updates["cost"] = *in.Cost
	}
	if in.NumberOfPeople != nil {
		if *in.NumberOfPeople < 1 {
			return fmt.Errorf("%w: number of people must be at least 1", ErrValidation)
		}
		updates["number_of_people"] = *in.NumberOfPeople
	}
	if in.Instructions != nil {
		ciphertext, errEncrypt := s.cipher.Encrypt(*in.Instructions)
		if errEncrypt != nil {
			return fmt.Errorf("store: encrypt instructions: %w", errEncrypt)
		}
		updates["instructions"] = ciphertext
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx
		if !dbutil.IsSQLite(tx) {
			q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}

		var service models.Service
		if errFind := q.First(&service, serviceID).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return rules.ErrNotFound
			}
			return fmt.Errorf("store: find service: %w", errFind)
		}

		if in.NumberOfPeople != nil {
			var subscribers int64
			if errCount := tx.Model(&models.ServiceUser{}).Where("service_id = ?", serviceID).Count(&subscribers).Error; errCount != nil {
				return fmt.Errorf("store: count service users: %w", errCount)
			}
			if int64(*in.NumberOfPeople) < subscribers {
				return fmt.Errorf("%w: number of people cannot be below the current subscriber count (%d)", ErrValidation, subscribers)
			}
		}

		if errUpdate := tx.Model(&service).Updates(updates).Error; errUpdate != nil {
			return fmt.Errorf("store: update service: %w", errUpdate)
		}
		return nil
	})
}

// GetService loads a service with its subscriber rows.
func (s *Store) GetService(ctx context.Context, serviceID uint64) (*models.Service, error) {
	var service models.Service
	errFind := s.db.WithContext(ctx).Preload("Users").First(&service, serviceID).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, rules.ErrNotFound
		}
		return nil, fmt.Errorf("store: get service: %w", errFind)
	}
	return &service, nil
}

// RemoveService deletes all subscriber rows then the service itself,
// atomically. The caller checks ownership.
func (s *Store) RemoveService(ctx context.Context, serviceID uint64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errDelete := tx.Where("service_id = ?", serviceID).Delete(&models.ServiceUser{}).Error; errDelete != nil {
			return fmt.Errorf("store: delete service users: %w", errDelete)
		}
		res := tx.Delete(&models.Service{}, serviceID)
		if res.Error != nil {
			return fmt.Errorf("store: delete service: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return rules.ErrNotFound
		}
		return nil
	})
}

// JoinService takes a spot on a service. The service row is locked for the
// duration of the transaction (SQLite serializes writers on its own), so
// the capacity check and the insert are atomic: two concurrent joins for
// the last seat cannot both succeed.
func (s *Store) JoinService(ctx context.Context, serviceID, userID uint64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx
		if !dbutil.IsSQLite(tx) {
			q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}

		var service models.Service
		if errFind := q.First(&service, serviceID).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return rules.ErrNotFound
			}
			return fmt.Errorf("store: find service: %w", errFind)
		}

		var member models.GroupMember
		errMember := tx.Where("group_id = ? AND user_id = ?", service.GroupID, userID).First(&member).Error
		if errMember != nil {
			if errors.Is(errMember, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: not a member of this group", rules.ErrNotAuthorized)
			}
			return fmt.Errorf("store: find member: %w", errMember)
		}

		var users []models.ServiceUser
		if errFind := tx.Where("service_id = ?", serviceID).Find(&users).Error; errFind != nil {
			return fmt.Errorf("store: load service users: %w", errFind)
		}
		if errRule := rules.CanJoinService(&service, users, userID); errRule != nil {
			return errRule
		}

		now := time.Now().UTC()
		row := models.ServiceUser{
			UserID:    userID,
			ServiceID: serviceID,
			IsCreator: false,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if errCreate := tx.Create(&row).Error; errCreate != nil {
			return fmt.Errorf("store: create service user: %w", errCreate)
		}
		return nil
	})
}

// LeaveService releases the caller's spot. The creator cannot leave their
// own service; they remove it instead.
func (s *Store) LeaveService(ctx context.Context, serviceID, userID uint64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row models.ServiceUser
		errFind := tx.Where("service_id = ? AND user_id = ?", serviceID, userID).First(&row).Error
		if errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return rules.ErrNotFound
			}
			return fmt.Errorf("store: find service user: %w", errFind)
		}
		if row.IsCreator {
			return fmt.Errorf("%w: creator cannot leave their own service", rules.ErrNotAuthorized)
		}
		if errDelete := tx.Delete(&models.ServiceUser{}, row.ID).Error; errDelete != nil {
			return fmt.Errorf("store: delete service user: %w", errDelete)
		}
		return nil
	})
}

// ListServices returns the group's services as views for the requesting
// user. Instructions are decrypted only for current group members;
// non-members receive no instructions field at all.
func (s *Store) ListServices(ctx context.Context, groupID, requestingUserID uint64) ([]ServiceView, error) {
	var member models.GroupMember
	isMember := true
	errMember := s.db.WithContext(ctx).Where("group_id = ? AND user_id = ?", groupID, requestingUserID).First(&member).Error
	if errMember != nil {
		if !errors.Is(errMember, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("store: find member: %w", errMember)
		}
		isMember = false
	}

	var services []models.Service
	errFind := s.db.WithContext(ctx).Preload("Users").
		Where("group_id = ?", groupID).
		Order("created_at DESC").
		Find(&services).Error
	if errFind != nil {
		return nil, fmt.Errorf("store: list services: %w", errFind)
	}

	views := make([]ServiceView, 0, len(services))
	for _, svc := range services {
		view := ServiceView{
			ID:             svc.ID,
			GroupID:        svc.GroupID,
			Name:           svc.Name,
			Cost:           svc.Cost,
			NumberOfPeople: svc.NumberOfPeople,
			Users:          svc.Users,
			CreatedAt:      svc.CreatedAt,
			UpdatedAt:      svc.UpdatedAt,
		}
		if isMember {
			plaintext, errDecrypt := s.cipher.Decrypt(svc.Instructions)
			if errDecrypt != nil {
				return nil, fmt.Errorf("store: decrypt instructions for service %d: %w", svc.ID, errDecrypt)
			}
			view.Instructions = &plaintext
		}
		views = append(views, view)
	}
	return views, nil
}
