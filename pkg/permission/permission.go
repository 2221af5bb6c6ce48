package permission

import (
	"github.com/mpapenbr/docflow-session-go/log"
	"github.com/mpapenbr/docflow-session-go/pkg/session"
)

type Permission string

const (
	PermissionViewDocuments    Permission = "view-documents"
	PermissionSubmitDocument   Permission = "submit-document"
	PermissionDownloadDocument Permission = "download-document"
	PermissionUpdateDocument   Permission = "update-document"
	PermissionWithdrawDocument Permission = "withdraw-document"
)

const (
	PermissionViewApprovalQueue Permission = "view-approval-queue"
	PermissionApproveDocument   Permission = "approve-document"
	PermissionRejectDocument    Permission = "reject-document"
)

type PermissionEvaluator interface {
	HasPermission(u *session.User, perm Permission) bool
	HasObjectPermission(u *session.User, perm Permission, objectOwner string) bool
}

func NewPermissionEvaluator() PermissionEvaluator {
	if ret, err := NewOpaPermissionEvaluator(); err != nil {
		log.Default().Error("failed to create permission evaluator", log.ErrorField(err))
		return nil
	} else {
		return ret
	}
}
