package blocksync

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store is the local cache of list memberships and per-list sync state. It is
// shared by the sync orchestrator and the mutation path; convergence between
// the two relies on the derived-id upsert rather than locking.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// NormalizeHandle strips a leading @ and lowercases, matching how handles are
// compared everywhere else in atproto.
func NormalizeHandle(handle string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(handle), "@"))
}

func (s *Store) GetSyncState(listUri string) (ListSyncState, error) {
	var state ListSyncState
	err := s.db.Where("list_uri = ?", listUri).Take(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ListSyncState{ListUri: listUri}, nil
	}
	if err != nil {
		return ListSyncState{}, err
	}
	return state, nil
}

func (s *Store) SetSyncState(state ListSyncState) error {
	return s.db.Save(&state).Error
}

func (s *Store) AddOrUpdate(rec ListMembership) error {
	return addOrUpdateTx(s.db, rec)
}

func addOrUpdateTx(tx *gorm.DB, rec ListMembership) error {
	rec.UserHandle = NormalizeHandle(rec.UserHandle)
	if rec.ID == "" {
		rec.ID = MembershipID(rec.ListUri, rec.UserHandle)
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"did", "record_uri", "position"}),
	}).Create(&rec).Error
}

func (s *Store) AddOrUpdateBulk(recs []ListMembership) error {
	if len(recs) == 0 {
		return nil
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		for _, rec := range recs {
			if err := addOrUpdateTx(tx, rec); err != nil {
				return err
			}
		}
		return nil
	})
}

// MergeChunk writes one fetched chunk and its updated sync state in a single
// transaction, so a persisted cursor always refers to data already merged.
// Items arrive newest-first from the list endpoint and are assigned positions
// in reverse, keeping positions increasing in original membership order.
func (s *Store) MergeChunk(listUri string, items []MemberItem, state ListSyncState) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		base, err := maxPositionTx(tx, listUri)
		if err != nil {
			return err
		}
		pos := base
		for i := len(items) - 1; i >= 0; i-- {
			pos++
			rec := ListMembership{
				ListUri:    listUri,
				UserHandle: items[i].Handle,
				Did:        items[i].Did,
				RecordUri:  items[i].RecordUri,
				Position:   pos,
			}
			if err := addOrUpdateTx(tx, rec); err != nil {
				return err
			}
		}
		return tx.Save(&state).Error
	})
}

func (s *Store) GetByHandle(listUri, userHandle string) (*ListMembership, error) {
	var rec ListMembership
	err := s.db.Where("list_uri = ? AND user_handle = ?", listUri, NormalizeHandle(userHandle)).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// IsHandleBlocked reports whether the handle appears in any of the given
// lists. An empty list set short-circuits without touching the database.
func (s *Store) IsHandleBlocked(userHandle string, listUris []string) (bool, error) {
	if len(listUris) == 0 {
		return false, nil
	}
	var count int64
	err := s.db.Model(&ListMembership{}).
		Where("user_handle = ? AND list_uri IN ?", NormalizeHandle(userHandle), listUris).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetMaxPosition returns -1 when the list has no cached rows, so the next
// position is always max+1.
func (s *Store) GetMaxPosition(listUri string) (int64, error) {
	return maxPositionTx(s.db, listUri)
}

func maxPositionTx(tx *gorm.DB, listUri string) (int64, error) {
	var maxPos int64
	err := tx.Model(&ListMembership{}).
		Select("COALESCE(MAX(position), -1)").
		Where("list_uri = ?", listUri).
		Scan(&maxPos).Error
	if err != nil {
		return -1, err
	}
	return maxPos, nil
}

func (s *Store) CountByList(listUri string) (int64, error) {
	var count int64
	err := s.db.Model(&ListMembership{}).Where("list_uri = ?", listUri).Count(&count).Error
	return count, err
}

func (s *Store) Remove(listUri, userHandle string) error {
	return s.db.Where("list_uri = ? AND user_handle = ?", listUri, NormalizeHandle(userHandle)).
		Delete(&ListMembership{}).Error
}

// ClearList drops all cached rows and the sync state for one list. Used
// before a full refresh walk.
func (s *Store) ClearList(listUri string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("list_uri = ?", listUri).Delete(&ListMembership{}).Error; err != nil {
			return err
		}
		return tx.Where("list_uri = ?", listUri).Delete(&ListSyncState{}).Error
	})
}

// ClearAll wipes the whole cache. Used on logout.
func (s *Store) ClearAll() error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&ListMembership{}).Error; err != nil {
			return err
		}
		return tx.Where("1 = 1").Delete(&ListSyncState{}).Error
	})
}

// SearchByHandle does a case-insensitive substring match over one list's
// cached handles, paginated, returning the page and the total match count.
func (s *Store) SearchByHandle(listUri, partial string, page, pageSize int) ([]ListMembership, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 25
	}

	pattern := "%" + escapeLike(NormalizeHandle(partial)) + "%"
	q := s.db.Model(&ListMembership{}).
		Where("list_uri = ? AND user_handle LIKE ? ESCAPE '\\'", listUri, pattern)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var recs []ListMembership
	err := q.Order("position DESC").
		Limit(pageSize).
		Offset((page - 1) * pageSize).
		Find(&recs).Error
	if err != nil {
		return nil, 0, err
	}
	return recs, total, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// BackupData is the full-store serialization used by export and import.
type BackupData struct {
	ExportedAt  string           `json:"exportedAt"`
	Memberships []ListMembership `json:"memberships"`
	SyncStates  []ListSyncState  `json:"syncStates"`
}

func (s *Store) ExportAll(exportedAt string) (*BackupData, error) {
	data := &BackupData{ExportedAt: exportedAt}
	if err := s.db.Order("list_uri, position").Find(&data.Memberships).Error; err != nil {
		return nil, err
	}
	if err := s.db.Order("list_uri").Find(&data.SyncStates).Error; err != nil {
		return nil, err
	}
	return data, nil
}

// ImportAll replaces the entire store contents with the backup's.
func (s *Store) ImportAll(data *BackupData) error {
	if data == nil {
		return fmt.Errorf("no backup data")
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&ListMembership{}).Error; err != nil {
			return err
		}
		if err := tx.Where("1 = 1").Delete(&ListSyncState{}).Error; err != nil {
			return err
		}
		for _, rec := range data.Memberships {
			if err := addOrUpdateTx(tx, rec); err != nil {
				return err
			}
		}
		for _, state := range data.SyncStates {
			state := state
			if err := tx.Save(&state).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
