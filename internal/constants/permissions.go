package constants

const (
	ViewAccount        = "view_account"
	ManageInvestments  = "manage_investments"
	RequestWithdrawal  = "request_withdrawal"
	ViewAllInvestors   = "view_all_investors"
	EditInvestors      = "edit_investors"
	ApproveWithdrawals = "approve_withdrawals"
	RunJobs            = "run_jobs"
	AssignRole         = "assign_role"
)
