package registry

import "errors"

// ErrAuthRequired indicates a privileged command carrying a missing or
// unknown session id.
var ErrAuthRequired = errors.New("authentication required")

// ErrDuplicateUser indicates a registration for a username that exists.
var ErrDuplicateUser = errors.New("username already exists")

// ErrUnknownUser indicates a login for a username never registered.
var ErrUnknownUser = errors.New("username not found")

// ErrInvalidCredentials indicates a password that failed verification.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrAccessDenied indicates a caller absent from a file's access list.
var ErrAccessDenied = errors.New("access denied")

// ErrFileNotFound indicates a file id with no record.
var ErrFileNotFound = errors.New("file not found")

// ErrNotOwner indicates a share or revoke by someone other than the
// file's owner.
var ErrNotOwner = errors.New("only the file owner can modify access")

// ErrAlreadyShared indicates a share with a user already on the list.
var ErrAlreadyShared = errors.New("file already shared with user")

// ErrNoAccess indicates a revoke for a user not on the list.
var ErrNoAccess = errors.New("user does not have access to this file")

// ErrOwnerRevoke indicates an attempt to revoke the owner's own access.
var ErrOwnerRevoke = errors.New("cannot revoke access for the file owner")

// ErrUnknownTarget indicates a share target that is not a known user.
var ErrUnknownTarget = errors.New("target user not found")
