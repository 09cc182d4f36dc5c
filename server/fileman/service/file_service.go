package service

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	"filevault/server/common/infra/object"
	commonlog "filevault/server/common/log"
	"filevault/server/fileman/domain"
	"filevault/server/fileman/query"
)

const (
	defaultPresignTTL   = 15 * time.Minute
	defaultObjectPrefix = "files"
	defaultContentType  = "application/octet-stream"
)

type Options struct {
	ObjectPrefix   string
	MaxUploadBytes int64
	QuotaBytes     int64
	Thumbnails     bool
	PresignTTL     time.Duration
}

type FileService struct {
	objects ObjectStore
	files   MetadataStore
	users   UserStore
	events  EventPublisher
	ledger  OrphanLedger
	thumbs  *Thumbnailer
	opts    Options
	newID   func() string
}

// NewFileService wires the core. events and ledger may be nil: events are
// then dropped and orphans are kept in memory.
func NewFileService(objects ObjectStore, files MetadataStore, users UserStore, events EventPublisher, ledger OrphanLedger, opts Options) *FileService {
	if opts.ObjectPrefix == "" {
		opts.ObjectPrefix = defaultObjectPrefix
	}
	if opts.QuotaBytes <= 0 {
		opts.QuotaBytes = domain.DefaultQuotaBytes
	}
	if opts.PresignTTL <= 0 {
		opts.PresignTTL = defaultPresignTTL
	}
	if ledger == nil {
		ledger = NewMemoryOrphanLedger()
	}
	s := &FileService{
		objects: objects,
		files:   files,
		users:   users,
		events:  events,
		ledger:  ledger,
		opts:    opts,
		newID:   uuid.NewString,
	}
	if opts.Thumbnails {
		s.thumbs = NewThumbnailer(objects)
	}
	return s
}

type UploadInput struct {
	FileName    string
	ContentType string
	// Size is what the client claims, -1 when unknown. It is only used to
	// reject oversized uploads early; the stored size comes from the store.
	Size int64
	Body io.Reader
}

// Upload writes the object first and the record second. If the record cannot
// be created the object is deleted again, so a failed upload never leaves a
// binary behind without also leaving a ledger entry for it.
func (s *FileService) Upload(ctx context.Context, caller domain.Identity, in UploadInput) (domain.FileRecord, error) {
	defer observe("upload", time.Now())

	if err := requireIdentity(caller); err != nil {
		return domain.FileRecord{}, err
	}
	name := cleanFileName(in.FileName)
	if name == "" {
		uploadsTotal.WithLabelValues("rejected").Inc()
		return domain.FileRecord{}, domain.NewValidationError("file", "file name is required")
	}
	maxBytes := s.opts.MaxUploadBytes
	if maxBytes > 0 && in.Size > maxBytes {
		uploadsTotal.WithLabelValues("rejected").Inc()
		return domain.FileRecord{}, tooLarge(maxBytes)
	}

	category, ext := domain.Classify(name)
	key := s.objectKey(caller.UserID, ext)

	hasher, err := blake2b.New256(nil)
	if err != nil {
		return domain.FileRecord{}, err
	}
	var body io.Reader = in.Body
	if maxBytes > 0 {
		body = io.LimitReader(body, maxBytes+1)
	}
	body = io.TeeReader(body, hasher)

	size := in.Size
	if size < 0 || (maxBytes > 0 && size > maxBytes) {
		size = -1
	}
	contentType := strings.TrimSpace(in.ContentType)
	if contentType == "" {
		contentType = defaultContentType
	}

	stored, err := s.objects.Put(ctx, key, body, size, contentType)
	if err != nil {
		uploadsTotal.WithLabelValues("object_write_failed").Inc()
		commonlog.Errorf("event=fileman_upload status=object_write_failed owner_id=%s key=%s error=%v", caller.UserID, key, err)
		return domain.FileRecord{}, &domain.ObjectWriteError{Key: key, Err: err}
	}
	if maxBytes > 0 && stored.Size > maxBytes {
		uploadsTotal.WithLabelValues("rejected").Inc()
		s.compensate(ctx, key)
		return domain.FileRecord{}, tooLarge(maxBytes)
	}

	var thumbKey string
	if category == domain.CategoryImage && s.thumbs != nil && s.thumbs.Supports(ext) {
		if thumbKey, err = s.thumbs.Make(ctx, key); err != nil {
			commonlog.Warnf("event=fileman_thumbnail status=failed key=%s error=%v", key, err)
			thumbKey = ""
		}
	}

	created, err := s.files.Create(ctx, domain.FileRecord{
		Name:         name,
		Extension:    ext,
		Category:     category,
		ObjectKey:    key,
		ThumbnailKey: thumbKey,
		Checksum:     hex.EncodeToString(hasher.Sum(nil)),
		Size:         stored.Size,
		OwnerID:      caller.UserID,
		SharedWith:   []string{},
	})
	if err != nil {
		uploadsTotal.WithLabelValues("metadata_write_failed").Inc()
		commonlog.Errorf("event=fileman_upload status=metadata_write_failed owner_id=%s key=%s error=%v", caller.UserID, key, err)
		s.compensate(ctx, key, thumbKey)
		return domain.FileRecord{}, &domain.MetadataWriteError{Op: "create", Err: err}
	}

	uploadsTotal.WithLabelValues("ok").Inc()
	commonlog.Infof("event=fileman_upload status=ok owner_id=%s file_id=%s size=%d category=%s", caller.UserID, created.ID, created.Size, created.Category)
	s.publish(ctx, domain.EventUploaded, created, nil)
	return s.decorate(created), nil
}

// compensate deletes objects written by a failed upload. A failure here is
// logged and recorded as an orphan; it never replaces the caller's error.
func (s *FileService) compensate(ctx context.Context, keys ...string) {
	ctx = context.WithoutCancel(ctx)
	for _, key := range keys {
		if key == "" {
			continue
		}
		err := s.objects.Delete(ctx, key)
		if err != nil && !errors.Is(err, object.ErrObjectNotFound) {
			compensationsTotal.WithLabelValues("failed").Inc()
			commonlog.Errorf("event=fileman_compensation status=failed key=%s error=%v", key, err)
			s.recordOrphan(ctx, key, "compensation")
			continue
		}
		compensationsTotal.WithLabelValues("ok").Inc()
		commonlog.Infof("event=fileman_compensation status=ok key=%s", key)
	}
}

func (s *FileService) recordOrphan(ctx context.Context, key, source string) {
	orphansTotal.WithLabelValues(source).Inc()
	if err := s.ledger.Add(ctx, key); err != nil {
		commonlog.Exceptionf("event=fileman_orphan status=unrecorded source=%s key=%s error=%v", source, key, err)
		return
	}
	commonlog.Warnf("event=fileman_orphan status=recorded source=%s key=%s", source, key)
}

// Find compiles req for caller and runs it. Visibility comes from caller only.
func (s *FileService) Find(ctx context.Context, caller domain.Identity, req query.Request) ([]domain.FileRecord, error) {
	defer observe("find", time.Now())

	plan, err := query.Build(caller, req)
	if err != nil {
		return nil, err
	}
	items, err := s.files.Query(ctx, plan)
	if err != nil {
		return nil, fmt.Errorf("query files: %w", err)
	}
	for i := range items {
		items[i] = s.decorate(items[i])
	}
	return items, nil
}

// Rename sets the name to "<newBaseName>.<extension>" using the record's
// stored extension. extension may be empty; if given it must match the stored
// one. The category never changes.
func (s *FileService) Rename(ctx context.Context, caller domain.Identity, fileID, newBaseName, extension string) (domain.FileRecord, error) {
	defer observe("rename", time.Now())

	if err := requireIdentity(caller); err != nil {
		return domain.FileRecord{}, err
	}
	base := strings.TrimSpace(newBaseName)
	if base == "" {
		return domain.FileRecord{}, domain.NewValidationError("name", "must not be empty")
	}
	current, err := s.loadVisible(ctx, caller, fileID)
	if err != nil {
		return domain.FileRecord{}, err
	}
	if ext := strings.TrimPrefix(strings.TrimSpace(extension), "."); ext != "" && !strings.EqualFold(ext, current.Extension) {
		return domain.FileRecord{}, domain.NewValidationError("extension", "rename keeps the existing extension")
	}
	base = strings.TrimSpace(domain.BaseName(base, current.Extension))
	if base == "" {
		return domain.FileRecord{}, domain.NewValidationError("name", "must not be empty")
	}

	name := domain.JoinName(base, current.Extension)
	updated, err := s.files.Update(ctx, current.ID, domain.FilePatch{Name: &name})
	if err != nil {
		return domain.FileRecord{}, metadataError("rename", err)
	}
	s.publish(ctx, domain.EventRenamed, updated, nil)
	return s.decorate(updated), nil
}

// SetSharedUsers replaces the sharee set wholesale. It is not a merge:
// removing one user means sending the reduced set. Only the owner may change
// who the file is shared with.
func (s *FileService) SetSharedUsers(ctx context.Context, caller domain.Identity, fileID string, emails []string) (domain.FileRecord, error) {
	defer observe("share", time.Now())

	if err := requireIdentity(caller); err != nil {
		return domain.FileRecord{}, err
	}
	shared := domain.NormalizeEmails(emails)
	for _, email := range shared {
		if !isBareAddress(email) {
			return domain.FileRecord{}, domain.NewValidationError("emails", fmt.Sprintf("%q is not an email address", email))
		}
	}
	current, err := s.loadVisible(ctx, caller, fileID)
	if err != nil {
		return domain.FileRecord{}, err
	}
	if !current.OwnedBy(caller) {
		return domain.FileRecord{}, domain.ErrForbidden
	}

	updated, err := s.files.Update(ctx, current.ID, domain.FilePatch{SharedWith: &shared})
	if err != nil {
		return domain.FileRecord{}, metadataError("share", err)
	}
	s.publish(ctx, domain.EventShared, updated, current.SharedWith)
	return s.decorate(updated), nil
}

// Delete removes the record first and the object second. A failed object
// delete leaves an orphan in the ledger and still counts as a successful
// delete, since the record is what makes a file visible and billable.
func (s *FileService) Delete(ctx context.Context, caller domain.Identity, fileID string) error {
	defer observe("delete", time.Now())

	if err := requireIdentity(caller); err != nil {
		return err
	}
	current, err := s.loadVisible(ctx, caller, fileID)
	if err != nil {
		return err
	}
	if !current.OwnedBy(caller) {
		return domain.ErrForbidden
	}

	if err := s.files.Delete(ctx, current.ID); err != nil {
		return metadataError("delete", err)
	}
	commonlog.Infof("event=fileman_delete status=record_deleted owner_id=%s file_id=%s", caller.UserID, current.ID)
	s.publish(ctx, domain.EventDeleted, current, nil)

	objCtx := context.WithoutCancel(ctx)
	for _, key := range []string{current.ObjectKey, current.ThumbnailKey} {
		if key == "" {
			continue
		}
		if err := s.objects.Delete(objCtx, key); err != nil && !errors.Is(err, object.ErrObjectNotFound) {
			delErr := &domain.ObjectDeleteError{Key: key, Err: err}
			commonlog.Errorf("event=fileman_delete status=object_delete_failed file_id=%s error=%v", current.ID, delErr)
			s.recordOrphan(objCtx, key, "delete")
		}
	}
	return nil
}

// Summarize reports storage used by files the caller owns.
func (s *FileService) Summarize(ctx context.Context, caller domain.Identity, categories []domain.Category) (domain.UsageSummary, error) {
	defer observe("summarize", time.Now())

	if err := requireIdentity(caller); err != nil {
		return domain.UsageSummary{}, err
	}
	records, err := s.files.ListByOwner(ctx, caller.UserID)
	if err != nil {
		return domain.UsageSummary{}, fmt.Errorf("list owned files: %w", err)
	}
	return domain.SummarizeUsage(caller.UserID, records, categories, s.opts.QuotaBytes), nil
}

func (s *FileService) PresignDownload(ctx context.Context, caller domain.Identity, fileID string) (string, error) {
	if err := requireIdentity(caller); err != nil {
		return "", err
	}
	current, err := s.loadVisible(ctx, caller, fileID)
	if err != nil {
		return "", err
	}
	u, err := s.objects.PresignGet(ctx, current.ObjectKey, s.opts.PresignTTL)
	if err != nil {
		if errors.Is(err, object.ErrObjectNotFound) {
			return "", domain.ErrNotFound
		}
		return "", err
	}
	return u, nil
}

func (s *FileService) PresignTTL() time.Duration {
	return s.opts.PresignTTL
}

// loadVisible resolves fileID for caller. A record the caller cannot see is
// reported exactly like a missing one.
func (s *FileService) loadVisible(ctx context.Context, caller domain.Identity, fileID string) (domain.FileRecord, error) {
	fileID = strings.TrimSpace(fileID)
	if fileID == "" {
		return domain.FileRecord{}, domain.ErrNotFound
	}
	rec, err := s.files.Get(ctx, fileID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.FileRecord{}, domain.ErrNotFound
		}
		return domain.FileRecord{}, fmt.Errorf("load file: %w", err)
	}
	if !rec.VisibleTo(caller) {
		return domain.FileRecord{}, domain.ErrNotFound
	}
	return rec, nil
}

func (s *FileService) publish(ctx context.Context, kind domain.EventKind, rec domain.FileRecord, previouslyShared []string) {
	if s.events == nil {
		return
	}
	event := domain.FileEvent{
		Kind:       kind,
		FileID:     rec.ID,
		OwnerID:    rec.OwnerID,
		SharedWith: domain.NormalizeEmails(append(append([]string{}, rec.SharedWith...), previouslyShared...)),
		At:         time.Now().UTC(),
	}
	if err := s.events.Publish(context.WithoutCancel(ctx), event); err != nil {
		commonlog.Warnf("event=fileman_publish status=failed kind=%s file_id=%s error=%v", kind, rec.ID, err)
	}
}

func (s *FileService) decorate(rec domain.FileRecord) domain.FileRecord {
	rec.URL = s.objects.PublicURL(rec.ObjectKey)
	if rec.ThumbnailKey != "" {
		rec.ThumbnailURL = s.objects.PublicURL(rec.ThumbnailKey)
	}
	return rec
}

// objectKey lays objects out as <prefix>/<ownerId>/<uuid>.<ext>.
func (s *FileService) objectKey(ownerID, ext string) string {
	return path.Join(s.opts.ObjectPrefix, ownerID, domain.JoinName(s.newID(), ext))
}

func metadataError(op string, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ErrNotFound
	}
	return &domain.MetadataWriteError{Op: op, Err: err}
}

func requireIdentity(caller domain.Identity) error {
	if strings.TrimSpace(caller.UserID) == "" {
		return domain.NewValidationError("identity", "user id is required")
	}
	return nil
}

func tooLarge(maxBytes int64) error {
	return domain.NewValidationError("file", "exceeds the upload limit of "+domain.FormatSize(maxBytes, 0))
}

// cleanFileName drops any client-side directory part.
func cleanFileName(raw string) string {
	raw = strings.TrimSpace(strings.ReplaceAll(raw, `\`, "/"))
	if raw == "" {
		return ""
	}
	name := path.Base(raw)
	if name == "." || name == "/" {
		return ""
	}
	return name
}
