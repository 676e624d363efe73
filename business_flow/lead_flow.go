package businessflow

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/amirphl/simple-crm/app/dto"
	"github.com/amirphl/simple-crm/app/services"
	"github.com/amirphl/simple-crm/models"
	"github.com/amirphl/simple-crm/repository"
	"github.com/amirphl/simple-crm/utils"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

const defaultLeadOrdering = "date_added DESC, id DESC"

// LeadFlow handles lead CRUD behind the collection gate, query scoping and the object gate
type LeadFlow interface {
	ListLeads(ctx context.Context, accountID uint, req *dto.ListLeadsRequest) (*dto.ListLeadsResponse, error)
	CreateLead(ctx context.Context, accountID uint, req *dto.LeadRequest, metadata *ClientMetadata) (*dto.LeadDTO, error)
	GetLead(ctx context.Context, accountID, leadID uint) (*dto.LeadDTO, error)
	UpdateLead(ctx context.Context, accountID, leadID uint, req *dto.LeadRequest, metadata *ClientMetadata) (*dto.LeadDTO, error)
	PatchLead(ctx context.Context, accountID, leadID uint, req *dto.PatchLeadRequest, metadata *ClientMetadata) (*dto.LeadDTO, error)
	DeleteLead(ctx context.Context, accountID, leadID uint, metadata *ClientMetadata) error
	ExportLeads(ctx context.Context, accountID uint, req *dto.ListLeadsRequest, metadata *ClientMetadata) (string, []byte, error)
}

// LeadFlowImpl implements the lead business flow
type LeadFlowImpl struct {
	leadRepo        repository.LeadRepository
	categoryRepo    repository.CategoryRepository
	organizerRepo   repository.OrganizerProfileRepository
	agentRepo       repository.AgentProfileRepository
	auditRepo       repository.AuditLogRepository
	resolver        CallerResolver
	notificationSvc services.NotificationService
	publisher       services.EventPublisher
	db              *gorm.DB
}

// NewLeadFlow creates a new lead flow instance
func NewLeadFlow(
	leadRepo repository.LeadRepository,
	categoryRepo repository.CategoryRepository,
	organizerRepo repository.OrganizerProfileRepository,
	agentRepo repository.AgentProfileRepository,
	auditRepo repository.AuditLogRepository,
	resolver CallerResolver,
	notificationSvc services.NotificationService,
	publisher services.EventPublisher,
	db *gorm.DB,
) LeadFlow {
	return &LeadFlowImpl{
		leadRepo:        leadRepo,
		categoryRepo:    categoryRepo,
		organizerRepo:   organizerRepo,
		agentRepo:       agentRepo,
		auditRepo:       auditRepo,
		resolver:        resolver,
		notificationSvc: notificationSvc,
		publisher:       publisher,
		db:              db,
	}
}

// ListLeads returns the page of leads visible to the caller
func (lf *LeadFlowImpl) ListLeads(ctx context.Context, accountID uint, req *dto.ListLeadsRequest) (*dto.ListLeadsResponse, error) {
	caller, filter, err := lf.scopedFilter(ctx, accountID, req)
	if err != nil {
		return nil, NewBusinessError("LIST_LEADS_FAILED", "Failed to list leads", err)
	}

	page, pageSize, offset := normalizePage(req.Page, req.PageSize)

	total, err := lf.leadRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("LIST_LEADS_FAILED", "Failed to list leads", err)
	}

	rows, err := lf.leadRepo.ByFilter(ctx, filter, leadOrdering(req.Ordering), pageSize, offset)
	if err != nil {
		return nil, NewBusinessError("LIST_LEADS_FAILED", "Failed to list leads", err)
	}

	items := make([]dto.LeadDTO, 0, len(rows))
	for _, l := range rows {
		items = append(items, ToLeadDTO(*l, caller.IsStaff()))
	}

	recordLeadOperation("list", caller.Role())

	return &dto.ListLeadsResponse{
		Items:      items,
		Pagination: dto.NewPaginationInfo(page, pageSize, total),
	}, nil
}

// CreateLead creates a lead. Non-staff organizers always own what they create;
// staff choose the owner and default to their own organizer profile if they have one.
func (lf *LeadFlowImpl) CreateLead(ctx context.Context, accountID uint, req *dto.LeadRequest, metadata *ClientMetadata) (*dto.LeadDTO, error) {
	caller, err := lf.resolver.Resolve(ctx, accountID)
	if err != nil {
		return nil, NewBusinessError("CREATE_LEAD_FAILED", "Failed to create lead", err)
	}
	if err := CheckCollectionAccess(caller, ActionWrite); err != nil {
		createAuditLog(ctx, lf.auditRepo, caller.Account, models.AuditActionAccessDenied, "Lead creation denied", false, errString(err), metadata)
		return nil, NewBusinessError("CREATE_LEAD_FAILED", "Failed to create lead", err)
	}

	organizerID, err := lf.ownerForCreate(ctx, caller, req.Organizer)
	if err != nil {
		return nil, NewBusinessError("CREATE_LEAD_VALIDATION_FAILED", "Lead validation failed", err)
	}

	if err := lf.checkReferences(ctx, req.Agent, req.Category); err != nil {
		return nil, NewBusinessError("CREATE_LEAD_VALIDATION_FAILED", "Lead validation failed", err)
	}

	lead := &models.Lead{
		FirstName:     strings.TrimSpace(req.FirstName),
		LastName:      strings.TrimSpace(req.LastName),
		Age:           req.Age,
		OrganizerID:   organizerID,
		AgentID:       req.Agent,
		CategoryID:    req.Category,
		Description:   req.Description,
		DateAdded:     utils.UTCNow(),
		PhoneNumber:   strings.TrimSpace(req.PhoneNumber),
		Email:         utils.NormalizeEmail(req.Email),
		ConvertedDate: utils.TimeToUTCPtr(req.ConvertedDate),
	}

	err = withTransaction(ctx, lf.db, func(ctx context.Context) error {
		return lf.leadRepo.Save(ctx, lead)
	})
	if err != nil {
		createAuditLog(ctx, lf.auditRepo, caller.Account, models.AuditActionLeadCreated, "Lead creation failed", false, errString(err), metadata)
		return nil, NewBusinessError("CREATE_LEAD_FAILED", "Failed to create lead", err)
	}

	createAuditLog(ctx, lf.auditRepo, caller.Account, models.AuditActionLeadCreated, fmt.Sprintf("Lead created: %d owned by organizer %d", lead.ID, lead.OrganizerID), true, nil, metadata)
	recordLeadOperation("create", caller.Role())

	lf.publish(ctx, services.EventLeadCreated, leadEventData(lead))
	if lead.AgentID != nil {
		lf.announceAssignment(ctx, lead)
	}

	out := ToLeadDTO(*lead, caller.IsStaff())
	return &out, nil
}

// GetLead returns one lead if the object gate allows the caller to read it
func (lf *LeadFlowImpl) GetLead(ctx context.Context, accountID, leadID uint) (*dto.LeadDTO, error) {
	caller, lead, err := lf.loadLead(ctx, accountID, leadID, ActionRead)
	if err != nil {
		return nil, NewBusinessError("GET_LEAD_FAILED", "Failed to get lead", err)
	}

	recordLeadOperation("retrieve", caller.Role())

	out := ToLeadDTO(*lead, caller.IsStaff())
	return &out, nil
}

// UpdateLead replaces every writable field of a lead (PUT)
func (lf *LeadFlowImpl) UpdateLead(ctx context.Context, accountID, leadID uint, req *dto.LeadRequest, metadata *ClientMetadata) (*dto.LeadDTO, error) {
	return lf.update(ctx, accountID, leadID, metadata, func(caller *Caller, lead *models.Lead) (leadChange, error) {
		change := leadChange{organizer: lead.OrganizerID, agent: req.Agent, category: req.Category}
		if caller.IsStaff() && req.Organizer != nil {
			change.organizer = *req.Organizer
		}

		lead.FirstName = strings.TrimSpace(req.FirstName)
		lead.LastName = strings.TrimSpace(req.LastName)
		lead.Age = req.Age
		lead.Description = req.Description
		lead.PhoneNumber = strings.TrimSpace(req.PhoneNumber)
		lead.Email = utils.NormalizeEmail(req.Email)
		lead.ConvertedDate = utils.TimeToUTCPtr(req.ConvertedDate)
		return change, nil
	})
}

// PatchLead updates only the fields present in the request (PATCH)
func (lf *LeadFlowImpl) PatchLead(ctx context.Context, accountID, leadID uint, req *dto.PatchLeadRequest, metadata *ClientMetadata) (*dto.LeadDTO, error) {
	return lf.update(ctx, accountID, leadID, metadata, func(caller *Caller, lead *models.Lead) (leadChange, error) {
		change := leadChange{organizer: lead.OrganizerID, agent: lead.AgentID, category: lead.CategoryID}
		if caller.IsStaff() && req.Organizer != nil {
			change.organizer = *req.Organizer
		}

		switch {
		case req.ClearAgent:
			change.agent = nil
		case req.Agent != nil:
			change.agent = req.Agent
		}
		switch {
		case req.ClearCategory:
			change.category = nil
		case req.Category != nil:
			change.category = req.Category
		}

		if req.FirstName != nil {
			lead.FirstName = strings.TrimSpace(*req.FirstName)
		}
		if req.LastName != nil {
			lead.LastName = strings.TrimSpace(*req.LastName)
		}
		if req.Age != nil {
			lead.Age = *req.Age
		}
		if req.Description != nil {
			lead.Description = *req.Description
		}
		if req.PhoneNumber != nil {
			lead.PhoneNumber = strings.TrimSpace(*req.PhoneNumber)
		}
		if req.Email != nil {
			lead.Email = utils.NormalizeEmail(*req.Email)
		}
		switch {
		case req.ClearConvertedDate:
			lead.ConvertedDate = nil
		case req.ConvertedDate != nil:
			lead.ConvertedDate = utils.TimeToUTCPtr(req.ConvertedDate)
		}
		return change, nil
	})
}

// DeleteLead removes a lead the caller may write
func (lf *LeadFlowImpl) DeleteLead(ctx context.Context, accountID, leadID uint, metadata *ClientMetadata) error {
	caller, lead, err := lf.loadLead(ctx, accountID, leadID, ActionWrite)
	if err != nil {
		lf.auditDenied(ctx, caller, err, fmt.Sprintf("Lead %d deletion denied", leadID), metadata)
		return NewBusinessError("DELETE_LEAD_FAILED", "Failed to delete lead", err)
	}

	err = withTransaction(ctx, lf.db, func(ctx context.Context) error {
		n, err := lf.leadRepo.Delete(ctx, lead.ID)
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrLeadNotFound
		}
		return nil
	})
	if err != nil {
		createAuditLog(ctx, lf.auditRepo, caller.Account, models.AuditActionLeadDeleted, fmt.Sprintf("Lead %d deletion failed", leadID), false, errString(err), metadata)
		return NewBusinessError("DELETE_LEAD_FAILED", "Failed to delete lead", err)
	}

	createAuditLog(ctx, lf.auditRepo, caller.Account, models.AuditActionLeadDeleted, fmt.Sprintf("Lead deleted: %d", leadID), true, nil, metadata)
	recordLeadOperation("delete", caller.Role())
	lf.publish(ctx, services.EventLeadDeleted, leadEventData(lead))
	return nil
}

// ExportLeads renders the caller's visible leads, with list filters applied, as an xlsx workbook
func (lf *LeadFlowImpl) ExportLeads(ctx context.Context, accountID uint, req *dto.ListLeadsRequest, metadata *ClientMetadata) (string, []byte, error) {
	caller, filter, err := lf.scopedFilter(ctx, accountID, req)
	if err != nil {
		return "", nil, NewBusinessError("EXPORT_LEADS_FAILED", "Failed to export leads", err)
	}
	if !caller.IsStaff() && !caller.IsOrganizer() {
		recordDenial("export", caller.Role())
		return "", nil, NewBusinessError("EXPORT_LEADS_FAILED", "Failed to export leads", ErrForbidden)
	}

	total, err := lf.leadRepo.Count(ctx, filter)
	if err != nil {
		return "", nil, NewBusinessError("EXPORT_LEADS_FAILED", "Failed to export leads", err)
	}
	if total > utils.LeadExportMaxRows {
		return "", nil, NewBusinessError("EXPORT_LEADS_FAILED", "Failed to export leads", ErrExportTooLarge)
	}

	rows, err := lf.leadRepo.ByFilterWithRelations(ctx, filter, leadOrdering(req.Ordering), 0, 0)
	if err != nil {
		return "", nil, NewBusinessError("EXPORT_LEADS_FAILED", "Failed to export leads", err)
	}

	content, err := renderLeadsWorkbook(rows, caller.IsStaff())
	if err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}

	createAuditLog(ctx, lf.auditRepo, caller.Account, models.AuditActionLeadExported, fmt.Sprintf("Exported %d leads", len(rows)), true, nil, metadata)
	recordLeadOperation("export", caller.Role())

	filename := fmt.Sprintf("leads_%s.xlsx", utils.UTCNow().Format("20060102_150405"))
	return filename, content, nil
}

// Private helper methods

// leadChange carries the reference fields an update wants to set; they are validated before saving
type leadChange struct {
	organizer uint
	agent     *uint
	category  *uint
}

func (lf *LeadFlowImpl) update(ctx context.Context, accountID, leadID uint, metadata *ClientMetadata, apply func(*Caller, *models.Lead) (leadChange, error)) (*dto.LeadDTO, error) {
	caller, lead, err := lf.loadLead(ctx, accountID, leadID, ActionWrite)
	if err != nil {
		lf.auditDenied(ctx, caller, err, fmt.Sprintf("Lead %d update denied", leadID), metadata)
		return nil, NewBusinessError("UPDATE_LEAD_FAILED", "Failed to update lead", err)
	}

	previousAgent := lead.AgentID

	change, err := apply(caller, lead)
	if err != nil {
		return nil, NewBusinessError("UPDATE_LEAD_VALIDATION_FAILED", "Lead validation failed", err)
	}

	if change.organizer != lead.OrganizerID {
		organizer, err := lf.organizerRepo.ByID(ctx, change.organizer)
		if err != nil {
			return nil, NewBusinessError("UPDATE_LEAD_FAILED", "Failed to update lead", err)
		}
		if organizer == nil {
			return nil, NewBusinessError("UPDATE_LEAD_VALIDATION_FAILED", "Lead validation failed", ErrOrganizerNotFound)
		}
	}
	if err := lf.checkReferences(ctx, change.agent, change.category); err != nil {
		return nil, NewBusinessError("UPDATE_LEAD_VALIDATION_FAILED", "Lead validation failed", err)
	}

	lead.OrganizerID = change.organizer
	lead.AgentID = change.agent
	lead.CategoryID = change.category
	// relations may be stale after the id changes
	lead.Organizer, lead.Agent, lead.Category = nil, nil, nil

	err = withTransaction(ctx, lf.db, func(ctx context.Context) error {
		return lf.leadRepo.Update(ctx, lead)
	})
	if err != nil {
		createAuditLog(ctx, lf.auditRepo, caller.Account, models.AuditActionLeadUpdated, fmt.Sprintf("Lead %d update failed", leadID), false, errString(err), metadata)
		return nil, NewBusinessError("UPDATE_LEAD_FAILED", "Failed to update lead", err)
	}

	createAuditLog(ctx, lf.auditRepo, caller.Account, models.AuditActionLeadUpdated, fmt.Sprintf("Lead updated: %d", leadID), true, nil, metadata)
	recordLeadOperation("update", caller.Role())

	if lead.AgentID != nil && (previousAgent == nil || *previousAgent != *lead.AgentID) {
		lf.announceAssignment(ctx, lead)
	}

	out := ToLeadDTO(*lead, caller.IsStaff())
	return &out, nil
}

// loadLead runs the collection gate, the role check of the scoping layer and then the object gate.
// Missing leads are reported before object access so unknown ids are a 404 for every role.
func (lf *LeadFlowImpl) loadLead(ctx context.Context, accountID, leadID uint, action Action) (*Caller, *models.Lead, error) {
	caller, err := lf.resolver.Resolve(ctx, accountID)
	if err != nil {
		return nil, nil, err
	}

	if err := CheckCollectionAccess(caller, action); err != nil {
		return caller, nil, err
	}

	if _, err := ScopeLeads(caller); err != nil {
		return caller, nil, err
	}

	lead, err := lf.leadRepo.ByID(ctx, leadID)
	if err != nil {
		return caller, nil, err
	}
	if lead == nil {
		return caller, nil, ErrLeadNotFound
	}

	if !CanAccess(caller, lead, action) {
		return caller, nil, ErrForbidden
	}

	return caller, lead, nil
}

// scopedFilter resolves the caller and intersects the requested filters with its scope
func (lf *LeadFlowImpl) scopedFilter(ctx context.Context, accountID uint, req *dto.ListLeadsRequest) (*Caller, models.LeadFilter, error) {
	caller, err := lf.resolver.Resolve(ctx, accountID)
	if err != nil {
		return nil, models.LeadFilter{}, err
	}

	if err := CheckCollectionAccess(caller, ActionRead); err != nil {
		return caller, models.LeadFilter{}, err
	}

	scope, err := ScopeLeads(caller)
	if err != nil {
		return caller, models.LeadFilter{}, err
	}

	requested := models.LeadFilter{
		OrganizerID: req.Organizer,
		AgentID:     req.Agent,
		CategoryID:  req.Category,
		IsConverted: req.Converted,
	}
	if s := strings.TrimSpace(req.Search); s != "" {
		requested.Search = &s
	}
	if requested.DateAddedAfter, err = parseDateFilter(req.DateAddedAfter); err != nil {
		return caller, models.LeadFilter{}, err
	}
	if requested.DateAddedBefore, err = parseDateFilter(req.DateAddedBefore); err != nil {
		return caller, models.LeadFilter{}, err
	}

	return caller, mergeLeadFilters(scope, requested), nil
}

// parseDateFilter reads a YYYY-MM-DD query value as midnight UTC
func parseDateFilter(value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	day, err := time.ParseInLocation(utils.DateFilterLayout, value, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDateFilter, value)
	}
	return &day, nil
}

func (lf *LeadFlowImpl) ownerForCreate(ctx context.Context, caller *Caller, requested *uint) (uint, error) {
	if !caller.IsStaff() {
		// the organizer field is not client input for non-staff callers
		if caller.Organizer == nil {
			return 0, ErrNoRoleAssigned
		}
		return caller.Organizer.ID, nil
	}

	if requested == nil {
		if caller.Organizer != nil {
			return caller.Organizer.ID, nil
		}
		return 0, ErrOrganizerRequired
	}

	organizer, err := lf.organizerRepo.ByID(ctx, *requested)
	if err != nil {
		return 0, err
	}
	if organizer == nil {
		return 0, ErrOrganizerNotFound
	}
	return organizer.ID, nil
}

func (lf *LeadFlowImpl) checkReferences(ctx context.Context, agentID, categoryID *uint) error {
	if agentID != nil {
		agent, err := lf.agentRepo.ByID(ctx, *agentID)
		if err != nil {
			return err
		}
		if agent == nil {
			return ErrAgentNotFound
		}
	}
	if categoryID != nil {
		category, err := lf.categoryRepo.ByID(ctx, *categoryID)
		if err != nil {
			return err
		}
		if category == nil {
			return ErrInvalidCategory
		}
	}
	return nil
}

// announceAssignment emails the assigned agent and publishes lead.assigned. Failures are logged only.
func (lf *LeadFlowImpl) announceAssignment(ctx context.Context, lead *models.Lead) {
	lf.publish(ctx, services.EventLeadAssigned, leadEventData(lead))

	if lf.notificationSvc == nil {
		return
	}

	agent, err := lf.agentRepo.ByIDWithAccount(ctx, *lead.AgentID)
	if err != nil || agent == nil || agent.Account == nil {
		log.Printf("Skipping assignment email for lead %d: agent %d not loaded: %v", lead.ID, *lead.AgentID, err)
		return
	}

	name := strings.TrimSpace(agent.Account.FirstName + " " + agent.Account.LastName)
	if name == "" {
		name = agent.Account.Username
	}
	if err := lf.notificationSvc.SendLeadAssigned(agent.Account.Email, name, lead.FullName(), lead.ID); err != nil {
		log.Printf("Failed to send assignment email for lead %d: %v", lead.ID, err)
	}
}

func (lf *LeadFlowImpl) auditDenied(ctx context.Context, caller *Caller, err error, description string, metadata *ClientMetadata) {
	if caller == nil || !IsForbidden(err) {
		return
	}
	createAuditLog(ctx, lf.auditRepo, caller.Account, models.AuditActionAccessDenied, description, false, errString(err), metadata)
}

func (lf *LeadFlowImpl) publish(ctx context.Context, eventType string, data any) {
	if lf.publisher == nil {
		return
	}
	if err := lf.publisher.Publish(ctx, eventType, data); err != nil {
		log.Printf("Failed to publish %s: %v", eventType, err)
	}
}

func leadEventData(lead *models.Lead) map[string]any {
	return map[string]any{
		"lead_id":      lead.ID,
		"organizer_id": lead.OrganizerID,
		"agent_id":     lead.AgentID,
		"category_id":  lead.CategoryID,
	}
}

func leadOrdering(ordering string) string {
	if o, ok := models.LeadOrderings[ordering]; ok {
		return o
	}
	return defaultLeadOrdering
}

func renderLeadsWorkbook(rows []*models.Lead, staffView bool) ([]byte, error) {
	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	sheet := utils.LeadExportSheetName
	if err := xl.SetSheetName(xl.GetSheetName(0), sheet); err != nil {
		return nil, err
	}

	header := []string{"id", "first_name", "last_name", "age", "email", "phone_number", "category", "agent", "description", "date_added", "converted_date"}
	if staffView {
		header = append(header, "organizer")
	}
	if err := xl.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, err
	}

	for i, l := range rows {
		category := ""
		if l.Category != nil {
			category = l.Category.Title
		}
		agent := ""
		if l.Agent != nil && l.Agent.Account != nil {
			agent = l.Agent.Account.Username
		}
		converted := ""
		if l.ConvertedDate != nil {
			converted = l.ConvertedDate.UTC().Format(time.RFC3339)
		}

		record := []string{
			strconv.FormatUint(uint64(l.ID), 10),
			l.FirstName,
			l.LastName,
			strconv.Itoa(l.Age),
			l.Email,
			l.PhoneNumber,
			category,
			agent,
			l.Description,
			l.DateAdded.UTC().Format(time.RFC3339),
			converted,
		}
		if staffView {
			organizer := strconv.FormatUint(uint64(l.OrganizerID), 10)
			if l.Organizer != nil && l.Organizer.Account != nil {
				organizer = l.Organizer.Account.Username
			}
			record = append(record, organizer)
		}

		cellRef, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := xl.SetSheetRow(sheet, cellRef, &record); err != nil {
			return nil, err
		}
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
