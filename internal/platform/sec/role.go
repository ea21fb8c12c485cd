// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

import "slices"

// # Roles

const (
	// RoleUser is granted to every self-registered account.
	RoleUser = "user"

	// RoleAdmin administers accounts across the practice.
	RoleAdmin = "admin"
)

// # Permissions

const (
	// PermissionAll grants every permission.
	PermissionAll = "*"

	// PermissionManageAccounts allows unlocking accounts and changing their status.
	PermissionManageAccounts = "accounts:manage"
)

// Grants reports whether the granted set satisfies want, honouring [PermissionAll].
func Grants(granted []string, want string) bool {
	return slices.Contains(granted, PermissionAll) || slices.Contains(granted, want)
}
