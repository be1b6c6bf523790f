// ABOUTME: Lead MCP tool handlers
// ABOUTME: Implements add_lead, find_leads, update_lead_status, assign_leads
package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harperreed/leadbatch/cache"
	"github.com/harperreed/leadbatch/models"
	"github.com/harperreed/leadbatch/store"
	"github.com/harperreed/leadbatch/validate"
)

// LeadHandlers exposes lead operations as MCP tools.
type LeadHandlers struct {
	store  *store.BatchStore
	reader *store.AggregateReader
	cache  *cache.Cache
}

// NewLeadHandlers creates lead handlers. The cache may be nil.
func NewLeadHandlers(bs *store.BatchStore, reader *store.AggregateReader, c *cache.Cache) *LeadHandlers {
	return &LeadHandlers{store: bs, reader: reader, cache: c}
}

func (h *LeadHandlers) invalidate() {
	if h.cache != nil {
		_ = h.cache.Invalidate()
	}
}

// loadAll returns the decoded record set, via the cache when fresh.
func (h *LeadHandlers) loadAll(ctx context.Context) ([]store.Entry, error) {
	if h.cache != nil {
		if cached, ok := h.cache.LoadRecords(); ok {
			entries := make([]store.Entry, 0, len(cached))
			for _, r := range cached {
				ref, err := models.ParseRecordRef(r.Ref)
				if err != nil {
					continue
				}
				entries = append(entries, store.Entry{Ref: ref, Lead: r.Lead})
			}
			return entries, nil
		}
	}

	entries, err := h.reader.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	if h.cache != nil {
		records := make([]cache.CachedRecord, 0, len(entries))
		for _, e := range entries {
			records = append(records, cache.CachedRecord{Ref: e.Ref.String(), Lead: e.Lead})
		}
		_ = h.cache.StoreRecords(records)
	}
	return entries, nil
}

type AddLeadInput struct {
	Name          string `json:"name" jsonschema:"Company name (required)"`
	Industry      string `json:"industry,omitempty" jsonschema:"Industry or sector"`
	CompanySize   string `json:"company_size,omitempty" jsonschema:"Company size bracket"`
	ContactPerson string `json:"contact_person,omitempty" jsonschema:"Primary contact name"`
	Phone         string `json:"phone,omitempty" jsonschema:"Contact phone"`
	Email         string `json:"email,omitempty" jsonschema:"Contact email"`
	Location      string `json:"location,omitempty" jsonschema:"Company location"`
	Designation   string `json:"designation,omitempty" jsonschema:"Contact designation"`
	LinkedIn      string `json:"linkedin,omitempty" jsonschema:"LinkedIn profile URL"`
	Website       string `json:"website,omitempty" jsonschema:"Company website URL"`
	Notes         string `json:"notes,omitempty" jsonschema:"Free-form notes"`
	Source        string `json:"source,omitempty" jsonschema:"Where this lead came from"`
	Status        string `json:"status,omitempty" jsonschema:"Initial pipeline status (hot/warm/cold/called/onboarded/dead)"`
	AllowDup      bool   `json:"allow_duplicate,omitempty" jsonschema:"Proceed even when a duplicate is detected"`
}

type AddLeadOutput struct {
	Ref          string `json:"ref"`
	DuplicateRef string `json:"duplicate_ref,omitempty"`
}

// AddLead validates and stores a new lead, returning its composite address.
// Duplicate detection is advisory: a match is rejected unless the caller
// sets allow_duplicate.
func (h *LeadHandlers) AddLead(ctx context.Context, _ *mcp.CallToolRequest, input AddLeadInput) (*mcp.CallToolResult, AddLeadOutput, error) {
	now := time.Now().UTC()
	lead := models.Lead{
		Name:          input.Name,
		Industry:      input.Industry,
		CompanySize:   input.CompanySize,
		ContactPerson: input.ContactPerson,
		Phone:         input.Phone,
		Email:         input.Email,
		Location:      input.Location,
		Designation:   input.Designation,
		LinkedIn:      input.LinkedIn,
		Website:       input.Website,
		Notes:         input.Notes,
		Source:        input.Source,
		CreatedAt:     &now,
		UpdatedAt:     &now,
	}
	if input.Status != "" {
		var err error
		lead, err = models.ApplyStatusTransition(lead, input.Status, now)
		if err != nil {
			return nil, AddLeadOutput{}, err
		}
	}

	if err := validate.Lead(&lead); err != nil {
		return nil, AddLeadOutput{}, err
	}

	var dupRef string
	entries, err := h.loadAll(ctx)
	if err == nil {
		leads := make([]models.Lead, len(entries))
		refs := make([]models.RecordRef, len(entries))
		for i, e := range entries {
			leads[i] = *e.Lead
			refs[i] = e.Ref
		}
		if dup := validate.FindDuplicate(&lead, leads, refs); dup != nil {
			dupRef = dup.String()
			if !input.AllowDup {
				return nil, AddLeadOutput{DuplicateRef: dupRef},
					fmt.Errorf("possible duplicate of %s (set allow_duplicate to proceed)", dupRef)
			}
		}
	}

	ref, err := h.store.AppendRecord(ctx, &lead)
	if err != nil {
		return nil, AddLeadOutput{}, fmt.Errorf("failed to store lead: %w", err)
	}
	h.invalidate()

	return nil, AddLeadOutput{Ref: ref.String(), DuplicateRef: dupRef}, nil
}

type FindLeadsInput struct {
	Query      string `json:"query,omitempty" jsonschema:"Search text (matches name, contact person, email)"`
	Status     string `json:"status,omitempty" jsonschema:"Filter by pipeline status"`
	AssignedTo string `json:"assigned_to,omitempty" jsonschema:"Filter by assigned user id"`
	Limit      int    `json:"limit,omitempty" jsonschema:"Maximum number of results (default 25)"`
}

type LeadOutput struct {
	Ref           string `json:"ref"`
	Name          string `json:"name"`
	Industry      string `json:"industry,omitempty"`
	ContactPerson string `json:"contact_person,omitempty"`
	Phone         string `json:"phone,omitempty"`
	Email         string `json:"email,omitempty"`
	Status        string `json:"status,omitempty"`
	AssignedTo    string `json:"assigned_to,omitempty"`
	Followups     int    `json:"followups"`
}

type FindLeadsOutput struct {
	Leads []LeadOutput `json:"leads"`
	Total int          `json:"total"`
}

// FindLeads rebuilds the record set (cache permitting) and filters it.
func (h *LeadHandlers) FindLeads(ctx context.Context, _ *mcp.CallToolRequest, input FindLeadsInput) (*mcp.CallToolResult, FindLeadsOutput, error) {
	entries, err := h.loadAll(ctx)
	if err != nil {
		return nil, FindLeadsOutput{}, fmt.Errorf("failed to load leads: %w", err)
	}

	limit := input.Limit
	if limit <= 0 {
		limit = 25
	}
	query := strings.ToLower(input.Query)

	out := FindLeadsOutput{}
	for _, e := range entries {
		l := e.Lead
		if input.Status != "" && l.Status != input.Status {
			continue
		}
		if input.AssignedTo != "" && l.AssignedTo != input.AssignedTo {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(l.Name), query) &&
			!strings.Contains(strings.ToLower(l.ContactPerson), query) &&
			!strings.Contains(strings.ToLower(l.Email), query) {
			continue
		}
		out.Total++
		if len(out.Leads) < limit {
			out.Leads = append(out.Leads, leadToOutput(e))
		}
	}
	return nil, out, nil
}

type UpdateLeadStatusInput struct {
	Ref    string `json:"ref" jsonschema:"Composite record id (batchId_position)"`
	Status string `json:"status" jsonschema:"New pipeline status (hot/warm/cold/called/onboarded/dead)"`
}

type UpdateLeadStatusOutput struct {
	Ref    string `json:"ref"`
	Status string `json:"status"`
}

// UpdateLeadStatus moves a lead through the pipeline. The returned ref can
// differ from the input when the write triggered a split.
func (h *LeadHandlers) UpdateLeadStatus(ctx context.Context, _ *mcp.CallToolRequest, input UpdateLeadStatusInput) (*mcp.CallToolResult, UpdateLeadStatusOutput, error) {
	ref, err := models.ParseRecordRef(input.Ref)
	if err != nil {
		return nil, UpdateLeadStatusOutput{}, err
	}

	now := time.Now().UTC()
	newRef, err := h.store.UpdateRecord(ctx, ref, func(lead *models.Lead) error {
		updated, err := models.ApplyStatusTransition(*lead, input.Status, now)
		if err != nil {
			return err
		}
		*lead = updated
		return nil
	})
	if err != nil {
		return nil, UpdateLeadStatusOutput{}, fmt.Errorf("failed to update status: %w", err)
	}
	h.invalidate()

	return nil, UpdateLeadStatusOutput{Ref: newRef.String(), Status: input.Status}, nil
}

type AssignLeadsInput struct {
	Refs       []string `json:"refs" jsonschema:"Composite record ids to assign"`
	UserID     string   `json:"user_id" jsonschema:"User to assign the leads to"`
	AssignedBy string   `json:"assigned_by,omitempty" jsonschema:"User performing the assignment"`
}

type AssignLeadsOutput struct {
	Summary   string   `json:"summary"`
	Succeeded int      `json:"succeeded"`
	Total     int      `json:"total"`
	Failures  []string `json:"failures,omitempty"`
}

// AssignLeads bulk-assigns records, grouped one write per touched batch,
// and reports partial success rather than all-or-nothing.
func (h *LeadHandlers) AssignLeads(ctx context.Context, _ *mcp.CallToolRequest, input AssignLeadsInput) (*mcp.CallToolResult, AssignLeadsOutput, error) {
	if input.UserID == "" {
		return nil, AssignLeadsOutput{}, fmt.Errorf("user_id is required")
	}

	refs := make([]models.RecordRef, 0, len(input.Refs))
	var failures []string
	for _, raw := range input.Refs {
		ref, err := models.ParseRecordRef(raw)
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", raw, err))
			continue
		}
		refs = append(refs, ref)
	}

	result, err := h.store.BulkAssign(ctx, refs, input.UserID, input.AssignedBy)
	if err != nil {
		return nil, AssignLeadsOutput{}, fmt.Errorf("bulk assign failed: %w", err)
	}
	h.invalidate()

	for _, f := range result.Failed {
		failures = append(failures, fmt.Sprintf("%s: %s", f.Ref, f.Reason))
	}
	return nil, AssignLeadsOutput{
		Summary:   fmt.Sprintf("%d/%d succeeded", result.Succeeded, len(input.Refs)),
		Succeeded: result.Succeeded,
		Total:     len(input.Refs),
		Failures:  failures,
	}, nil
}

type AddFollowupInput struct {
	Ref      string `json:"ref" jsonschema:"Composite record id (batchId_position)"`
	Date     string `json:"date" jsonschema:"Follow-up date (YYYY-MM-DD)"`
	Time     string `json:"time" jsonschema:"Follow-up time (HH:MM, 24h)"`
	Remarks  string `json:"remarks,omitempty" jsonschema:"Notes for the follow-up"`
	Template string `json:"template,omitempty" jsonschema:"Message template to use"`
}

type AddFollowupOutput struct {
	Ref string `json:"ref"`
	Key string `json:"key"`
}

// AddFollowup schedules a follow-up on a lead. The generated key uniquely
// identifies the follow-up for later edits and calendar linking.
func (h *LeadHandlers) AddFollowup(ctx context.Context, _ *mcp.CallToolRequest, input AddFollowupInput) (*mcp.CallToolResult, AddFollowupOutput, error) {
	ref, err := models.ParseRecordRef(input.Ref)
	if err != nil {
		return nil, AddFollowupOutput{}, err
	}
	if input.Date == "" || input.Time == "" {
		return nil, AddFollowupOutput{}, fmt.Errorf("date and time are required")
	}

	key := uuid.New().String()
	now := time.Now().UTC()
	newRef, err := h.store.UpdateRecord(ctx, ref, func(lead *models.Lead) error {
		lead.Followups = append(lead.Followups, models.Followup{
			Key:      key,
			Date:     input.Date,
			Time:     input.Time,
			Remarks:  input.Remarks,
			Template: input.Template,
		})
		lead.UpdatedAt = &now
		return nil
	})
	if err != nil {
		return nil, AddFollowupOutput{}, fmt.Errorf("failed to add followup: %w", err)
	}
	h.invalidate()

	return nil, AddFollowupOutput{Ref: newRef.String(), Key: key}, nil
}

type DeleteLeadsInput struct {
	Refs []string `json:"refs" jsonschema:"Composite record ids to delete"`
}

type DeleteLeadsOutput struct {
	Removed int `json:"removed"`
}

// DeleteLeads removes records by composite id. Entries that fail to decode
// are never removed by accident; only exact address matches go.
func (h *LeadHandlers) DeleteLeads(ctx context.Context, _ *mcp.CallToolRequest, input DeleteLeadsInput) (*mcp.CallToolResult, DeleteLeadsOutput, error) {
	wanted := make(map[string]bool, len(input.Refs))
	for _, raw := range input.Refs {
		ref, err := models.ParseRecordRef(raw)
		if err != nil {
			return nil, DeleteLeadsOutput{}, err
		}
		wanted[ref.String()] = true
	}

	removed, err := h.store.DeleteWhere(ctx, func(ref models.RecordRef, _ *models.Lead) bool {
		return wanted[ref.String()]
	})
	if err != nil {
		return nil, DeleteLeadsOutput{Removed: removed}, fmt.Errorf("delete failed: %w", err)
	}
	h.invalidate()

	return nil, DeleteLeadsOutput{Removed: removed}, nil
}

func leadToOutput(e store.Entry) LeadOutput {
	return LeadOutput{
		Ref:           e.Ref.String(),
		Name:          e.Lead.Name,
		Industry:      e.Lead.Industry,
		ContactPerson: e.Lead.ContactPerson,
		Phone:         e.Lead.Phone,
		Email:         e.Lead.Email,
		Status:        e.Lead.Status,
		AssignedTo:    e.Lead.AssignedTo,
		Followups:     len(e.Lead.Followups),
	}
}
