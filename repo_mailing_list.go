package activation

import (
	"context"
	"strings"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// MailingList stores confirmed addresses
type MailingList interface {
	Subscribe(ctx context.Context, member *MailingListMember) (*MailingListMember, error)
	SubscribeTx(ctx context.Context, tx bun.IDB, member *MailingListMember) (*MailingListMember, error)
}

type mailingList struct {
	repository.Repository[*MailingListMember]
	db *bun.DB
}

func NewMailingListRepository(db *bun.DB) MailingList {
	repo := repository.NewRepository[*MailingListMember](db, repository.ModelHandlers[*MailingListMember]{
		NewRecord: func() *MailingListMember { return &MailingListMember{} },
		GetID: func(m *MailingListMember) uuid.UUID {
			if m == nil {
				return uuid.Nil
			}
			return m.ID
		},
		SetID: func(m *MailingListMember, id uuid.UUID) {
			if m != nil {
				m.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &mailingList{
		Repository: repo,
		db:         db,
	}
}

func (m *mailingList) Subscribe(ctx context.Context, member *MailingListMember) (*MailingListMember, error) {
	return m.SubscribeTx(ctx, m.db, member)
}

// SubscribeTx adds member, subscribing an existing address is a no-op
func (m *mailingList) SubscribeTx(ctx context.Context, tx bun.IDB, member *MailingListMember) (*MailingListMember, error) {
	if member == nil || strings.TrimSpace(member.Email) == "" {
		return nil, ErrNoEmptyString
	}

	existing := &MailingListMember{}
	err := tx.NewSelect().
		Model(existing).
		Where("?TableAlias.email = ?", member.Email).
		Limit(1).
		Scan(ctx)
	if err == nil {
		return existing, nil
	}

	if !IsNotFound(err) {
		return nil, err
	}

	if member.ID == uuid.Nil {
		member.ID = uuid.New()
	}

	return m.Repository.CreateTx(ctx, tx, member)
}
