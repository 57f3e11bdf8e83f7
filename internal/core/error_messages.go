// Package core provides the view state and business rules for record grids.
//
// # Error Codes Reference
//
// This file defines user-friendly error messages with codes for support reference.
// Every failure that reaches a user notification is mapped through [MapError],
// so users can quote the code to support staff.
//
// # State Errors (STATE001-STATE099)
//
// Operations invoked outside their precondition:
//
//	STATE001 - Invalid state: The view cannot do that right now
//	           Patterns: "invalid state"
//	STATE002 - Load pending: More rows are already loading
//	           Patterns: "page load already in progress"
//	STATE003 - Batch pending: A save or delete is still running
//	           Patterns: "batch already in progress"
//	STATE004 - Nothing to save: There are no pending edits
//	           Patterns: "no pending edits"
//	STATE005 - Nothing selected: No rows are selected
//	           Patterns: "no rows selected"
//	STATE006 - Read-only field: This field cannot be edited
//	           Patterns: "field is not editable"
//	STATE007 - Unknown row: The row is no longer in this view
//	           Patterns: "unknown record"
//
// # Load Errors (LOAD001-LOAD099)
//
//	LOAD001 - Load failed: Records could not be loaded
//	          Patterns: "load failed"
//	LOAD002 - Cursor gone: The last loaded row was removed
//	          Patterns: "cursor record not found"
//
// # Update Errors (UPD001-UPD099)
//
//	UPD001 - Update failed: A record could not be saved
//	         Patterns: "update failed"
//	UPD002 - Partial save: Some records could not be saved
//	         Patterns: "update batch failed"
//
// # Delete Errors (DEL001-DEL099)
//
//	DEL001 - Delete failed: A record could not be deleted
//	         Patterns: "delete failed"
//	DEL002 - Has dependents: Records with related records cannot be deleted
//	         Patterns: "dependent records"
//	DEL003 - Partial delete: Some records could not be deleted
//	         Patterns: "delete batch failed"
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Duplicate key        Patterns: "duplicate key"
//	DB002 - Unique constraint    Patterns: "unique constraint", "violates unique"
//	DB003 - Foreign key          Patterns: "foreign key constraint", "violates foreign key"
//	DB004 - Connection refused   Patterns: "connection refused"
//	DB005 - Connection reset     Patterns: "connection reset"
//	DB006 - Timeout              Patterns: "timeout"
//	DB007 - Deadlock             Patterns: "deadlock"
//
// # Session Errors (VIEW001-VIEW099)
//
//	VIEW001 - View expired       Patterns: "view not found"
//	VIEW002 - Unknown view       Patterns: "unknown view"
//	VIEW003 - Request cancelled  Patterns: "context canceled"
//	VIEW004 - Request timeout    Patterns: "context deadline exceeded"
//	VIEW005 - Too many views     Patterns: "too many open views"
//
// # Request Errors (REQ001)
//
//	REQ001 - Bad request         Patterns: "invalid request body"
//
// # Rate Limiting (RATE001)
//
//	RATE001 - Rate limited       Patterns: "rate limit"
//
// # Default Error (ERR000)
//
// Fallback when no specific pattern matches. Support staff should check the
// application logs for the original technical error.
//
// # Pattern Matching
//
// Error patterns are matched case-insensitively using strings.Contains.
// The first matching pattern wins, so more specific patterns are listed
// before general ones.
package core

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error patterns (case-insensitive) to user messages.
// Order matters: the first match wins.
var errorPatterns = []errorPattern{
	// =========================================================================
	// State Errors (STATE002-STATE007 before the STATE001 catch-all)
	// =========================================================================
	{
		pattern: "page load already in progress",
		msg: UserMessage{
			Message: "More rows are already loading",
			Action:  "Wait for the current page to finish loading",
			Code:    "STATE002",
		},
	},
	{
		pattern: "batch already in progress",
		msg: UserMessage{
			Message: "A save or delete is still running",
			Action:  "Wait for it to finish before starting another",
			Code:    "STATE003",
		},
	},
	{
		pattern: "no pending edits",
		msg: UserMessage{
			Message: "There are no pending edits",
			Action:  "Edit a cell before saving",
			Code:    "STATE004",
		},
	},
	{
		pattern: "no rows selected",
		msg: UserMessage{
			Message: "No rows are selected",
			Action:  "Select one or more rows first",
			Code:    "STATE005",
		},
	},
	{
		pattern: "field is not editable",
		msg: UserMessage{
			Message: "This field cannot be edited",
			Action:  "Only editable columns accept inline changes",
			Code:    "STATE006",
		},
	},
	{
		pattern: "unknown record",
		msg: UserMessage{
			Message: "The row is no longer in this view",
			Action:  "Refresh the view and try again",
			Code:    "STATE007",
		},
	},
	{
		pattern: "invalid state",
		msg: UserMessage{
			Message: "The view cannot do that right now",
			Action:  "Refresh the view and try again",
			Code:    "STATE001",
		},
	},

	// =========================================================================
	// Business constraint and cursor errors
	// =========================================================================
	{
		pattern: "dependent records",
		msg: UserMessage{
			Message: "Records with related records cannot be deleted",
			Action:  "Remove the related records first",
			Code:    "DEL002",
		},
	},
	{
		pattern: "cursor record not found",
		msg: UserMessage{
			Message: "The last loaded row was removed",
			Action:  "Refresh the view to continue loading",
			Code:    "LOAD002",
		},
	},

	// =========================================================================
	// Database Constraint Errors (DB001-DB003)
	// =========================================================================
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "A record with this ID already exists",
			Action:  "Review the edited values for duplicates",
			Code:    "DB001",
		},
	},
	{
		pattern: "unique constraint",
		msg: UserMessage{
			Message: "This value must be unique but already exists",
			Action:  "Choose a different value",
			Code:    "DB002",
		},
	},
	{
		pattern: "violates unique",
		msg: UserMessage{
			Message: "A duplicate value was found",
			Action:  "Choose a different value",
			Code:    "DB002",
		},
	},
	{
		pattern: "foreign key constraint",
		msg: UserMessage{
			Message: "The record is referenced by other records",
			Action:  "Remove the related records first",
			Code:    "DB003",
		},
	},
	{
		pattern: "violates foreign key",
		msg: UserMessage{
			Message: "The record is referenced by other records",
			Action:  "Remove the related records first",
			Code:    "DB003",
		},
	},

	// =========================================================================
	// Database Connection Errors (DB004-DB007)
	// =========================================================================
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB004",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB005",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Please try again later",
			Code:    "DB006",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB007",
		},
	},

	// =========================================================================
	// Batch, update, delete and load errors
	// =========================================================================
	{
		pattern: "update batch failed",
		msg: UserMessage{
			Message: "Some records could not be saved",
			Action:  "Review the refreshed rows and retry the failed edits",
			Code:    "UPD002",
		},
	},
	{
		pattern: "update failed",
		msg: UserMessage{
			Message: "The record could not be saved",
			Action:  "Please try again",
			Code:    "UPD001",
		},
	},
	{
		pattern: "delete batch failed",
		msg: UserMessage{
			Message: "Some records could not be deleted",
			Action:  "Review the refreshed rows and retry",
			Code:    "DEL003",
		},
	},
	{
		pattern: "delete failed",
		msg: UserMessage{
			Message: "The record could not be deleted",
			Action:  "Please try again",
			Code:    "DEL001",
		},
	},
	{
		pattern: "load failed",
		msg: UserMessage{
			Message: "Records could not be loaded",
			Action:  "Refresh the view to try again",
			Code:    "LOAD001",
		},
	},

	// =========================================================================
	// Session Errors (VIEW001-VIEW004)
	// =========================================================================
	{
		pattern: "view not found",
		msg: UserMessage{
			Message: "This view has expired",
			Action:  "Reopen the view",
			Code:    "VIEW001",
		},
	},
	{
		pattern: "unknown view",
		msg: UserMessage{
			Message: "Unknown view type",
			Action:  "This view is not configured",
			Code:    "VIEW002",
		},
	},
	{
		pattern: "too many open views",
		msg: UserMessage{
			Message: "Too many views are open",
			Action:  "Close a view or wait for idle views to expire",
			Code:    "VIEW005",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "VIEW003",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Check your connection and try again",
			Code:    "VIEW004",
		},
	},

	// =========================================================================
	// Request Errors (REQ001)
	// =========================================================================
	{
		pattern: "invalid request body",
		msg: UserMessage{
			Message: "The request could not be read",
			Action:  "Check the request format and try again",
			Code:    "REQ001",
		},
	},

	// =========================================================================
	// Rate Limiting (RATE001)
	// =========================================================================
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// It searches through known error patterns (case-insensitive) and returns
// the first match. If no pattern matches, a generic fallback message with
// code ERR000 is returned.
//
// Example:
//
//	err := &BatchError{Op: "update", Total: 3, Failures: failures}
//	msg := MapError(err)
//	// msg.Code == "UPD002"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())

	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing checks if an error matches a known pattern and should be shown to users.
// Returns true if the error matches a specific pattern (not the generic ERR000 fallback).
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	msg := MapError(err)
	return msg.Code != defaultMessage.Code
}
