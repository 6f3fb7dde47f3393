package domain

// GenericTemplateSteps the fallback approval chain used when an organization
// has no template matching a document type: a plain serial
// Initial Review -> Quality Check -> Final Approval sequence, role-assigned.
var GenericTemplateSteps = []TemplateStep{
	{Order: 1, Name: "Initial Review", Description: "content and completeness review",
		AssigneeType: AssigneeTypeRole, AssigneeRole: "reviewer"},
	{Order: 2, Name: "Quality Check", Description: "quality system check",
		AssigneeType: AssigneeTypeRole, AssigneeRole: "quality"},
	{Order: 3, Name: "Final Approval", Description: "final regulatory sign-off",
		AssigneeType: AssigneeTypeRole, AssigneeRole: "approver"},
}
