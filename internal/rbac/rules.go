package rbac

// Default policy. Enumerators submit data from the field; coordinators manage
// forms and review responses for their mission.
var RolePermissions = map[string][]string{
	"enumerator": {
		"form:view",
		"response:submit",
		"response:view-own",
		"user:change_password",
	},
	"coordinator": {
		"form:create",
		"form:view",
		"form:publish",
		"response:submit",
		"response:view-all",
		"media:view",
		"users:bulk_upsert",
		"users:list",
	},
	"admin": {
		"*", // everything
	},
}
