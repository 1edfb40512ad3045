package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/HSouheill/partner_marketplace/models"
	"github.com/HSouheill/partner_marketplace/repositories"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Users struct {
	mu   sync.Mutex
	docs map[primitive.ObjectID]models.User
}

func NewUsers() *Users {
	return &Users{docs: make(map[primitive.ObjectID]models.User)}
}

func (r *Users) Insert(_ context.Context, u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	for _, existing := range r.docs {
		if existing.Email == u.Email {
			return repositories.ErrDuplicate
		}
	}
	r.docs[u.ID] = cloneUser(*u)
	return nil
}

func (r *Users) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.docs[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	u = cloneUser(u)
	return &u, nil
}

func (r *Users) FindByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range r.docs {
		if u.Email == email {
			u = cloneUser(u)
			return &u, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r *Users) AddBlockedUser(_ context.Context, userID, targetID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.docs[userID]
	if !ok {
		return repositories.ErrNotFound
	}
	if u.HasBlocked(targetID) {
		return repositories.ErrPreconditionFailed
	}
	u = cloneUser(u)
	u.BlockedUsers = append(u.BlockedUsers, targetID)
	u.UpdatedAt = time.Now()
	r.docs[userID] = u
	return nil
}

func cloneUser(u models.User) models.User {
	u.BlockedUsers = append([]primitive.ObjectID(nil), u.BlockedUsers...)
	return u
}

type Partners struct {
	mu   sync.Mutex
	docs map[primitive.ObjectID]models.Partner
}

func NewPartners() *Partners {
	return &Partners{docs: make(map[primitive.ObjectID]models.Partner)}
}

func (r *Partners) Insert(_ context.Context, p *models.Partner) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	for _, existing := range r.docs {
		if existing.UserID == p.UserID {
			return repositories.ErrDuplicate
		}
	}
	r.docs[p.ID] = *p
	return nil
}

func (r *Partners) FindByID(_ context.Context, id primitive.ObjectID) (*models.Partner, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.docs[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &p, nil
}

func (r *Partners) FindByUserID(_ context.Context, userID primitive.ObjectID) (*models.Partner, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.docs {
		if p.UserID == userID {
			return &p, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r *Partners) SetApprovalStatus(_ context.Context, id primitive.ObjectID, from, to string) (*models.Partner, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.docs[id]
	if !ok || p.ApprovalStatus != from {
		return nil, repositories.ErrPreconditionFailed
	}
	p.ApprovalStatus = to
	p.UpdatedAt = time.Now()
	r.docs[id] = p
	return &p, nil
}

type Notifications struct {
	mu   sync.Mutex
	docs []models.Notification
}

func NewNotifications() *Notifications {
	return &Notifications{}
}

func (r *Notifications) Insert(_ context.Context, n *models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n.ID.IsZero() {
		n.ID = primitive.NewObjectID()
	}
	r.docs = append(r.docs, *n)
	return nil
}

func (r *Notifications) ListByUser(_ context.Context, userID primitive.ObjectID, limit int64) ([]models.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Notification{}
	for _, n := range r.docs {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *Users) SetFCMToken(_ context.Context, userID primitive.ObjectID, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.docs[userID]
	if !ok {
		return repositories.ErrNotFound
	}
	u.FCMToken = token
	u.UpdatedAt = time.Now()
	r.docs[userID] = u
	return nil
}

type Reports struct {
	mu   sync.Mutex
	docs []models.Report
}

func NewReports() *Reports {
	return &Reports{}
}

func (r *Reports) Insert(_ context.Context, report *models.Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if report.ID.IsZero() {
		report.ID = primitive.NewObjectID()
	}
	r.docs = append(r.docs, *report)
	return nil
}

func (r *Reports) ListByReporter(_ context.Context, reporterID primitive.ObjectID) ([]models.Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Report{}
	for _, report := range r.docs {
		if report.ReporterID == reporterID {
			out = append(out, report)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
