package app

import (
	"errors"
	"fmt"
	"net/http"

	"collabsauce/api/internal/auth"
	"collabsauce/api/internal/authpw"
	"collabsauce/api/internal/store"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func validationError(message string) *DomainError {
	return domainError(http.StatusBadRequest, "VALIDATION_ERROR", message, nil)
}

func notFoundError() *DomainError {
	return domainError(http.StatusNotFound, "NOT_FOUND", "Not found.", nil)
}

func conflictError(message string) *DomainError {
	return domainError(http.StatusConflict, "CONFLICT", message, nil)
}

func unauthorizedError() *DomainError {
	return domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Authentication credentials were not provided.", nil)
}

const (
	msgAlreadyInOrg           = "You already belong to an organization."
	msgRemoveSelf             = "Cannot remove yourself from an organization"
	msgAdminToRemove          = "You must be an admin of the org to remove members"
	msgAdminToCreateProject   = "You must be an admin to create a project."
	msgProjectNameTaken       = "This project name already exists for your organization."
	msgAdminToUpdateProject   = "You must be an admin to update a project."
	msgAdminToRenameOrg       = "You must be an admin to update this organization."
	msgAdminToInvite          = "You must be an admin of this organization to send invites."
	msgAlreadyInvited         = "This email has already been invited to Collabsauce."
	msgLoginToAccept          = "You must be logged in to accept an invite."
	msgInviteNotYours         = "This invite does not belong to you."
	msgInviteInvalid          = "This invite is not longer valid. Ask your admin to resend an invite."
	msgCannotAccept           = "Can no longer accept this invitation."
	msgCannotDeny             = "Can no longer deny this invitation."
	msgCannotCancel           = "Can no longer cancel this invitation."
	msgAdminToCancel          = "You must be an admin of this organization to cancel invites."
	msgBadProjectKey          = "The project key is not implemented correctly on this website."
	msgNoProjectAccess        = "You do not have access to this project."
	msgAssigneeNotInOrg       = "This member does not belong to your organization."
	msgInvalidMove            = "Moving card invalid. Please contact support"
	msgNoTaskPermission       = "You do not have permission to update this task."
	msgColumnMismatch         = "This task column does not share the same project as the task."
	msgNoCommentAccess        = "You do not have access to comment on this task."
	msgConcurrentUpdate       = "This record was changed by someone else. Please try again."
	msgRequireEmailOrIdentity = "An email is required to submit a task anonymously."
	msgAlreadyMember          = "You are already a member of this organization."
	msgNameRequired           = "This field may not be blank."
	msgTitleRequired          = "A task title is required."
	msgInvalidEmail           = "Enter a valid email address."
)

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", "Not found.", nil
	case errors.Is(err, store.ErrConcurrentUpdate):
		return http.StatusConflict, "CONFLICT", msgConcurrentUpdate, nil
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrExpiredToken), errors.Is(err, authpw.ErrInvalidCredentials):
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	case errors.Is(err, authpw.ErrEmailTaken):
		return http.StatusConflict, "EMAIL_EXISTS", err.Error(), nil
	case errors.Is(err, authpw.ErrMissingFields), errors.Is(err, authpw.ErrInvalidEmail), errors.Is(err, authpw.ErrPasswordTooShort):
		return http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
