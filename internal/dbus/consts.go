package dbus

// Standard D-Bus names
const (
	DBUS_INTERFACE = "org.freedesktop.DBus"
	DBUS_PATH      = "/org/freedesktop/DBus"

	INTROSPECTABLE     = DBUS_INTERFACE + ".Introspectable"
	BUS_ADD_MATCH      = DBUS_INTERFACE + ".AddMatch"
	BUS_REMOVE_MATCH   = DBUS_INTERFACE + ".RemoveMatch"
	BUS_GET_NAME_OWNER = DBUS_INTERFACE + ".GetNameOwner"
	BUS_GET_CREDS      = DBUS_INTERFACE + ".GetConnectionCredentials"
	DBUS_PROP_IFACE    = DBUS_INTERFACE + ".Properties"

	PROP_GET     = DBUS_PROP_IFACE + ".Get"
	PROP_SET     = DBUS_PROP_IFACE + ".Set"
	PROP_GET_ALL = DBUS_PROP_IFACE + ".GetAll"

	SIGNAL_NAME_OWNER_CHANGED = "NameOwnerChanged"
	SIGNAL_NAME_LOST          = "NameLost"
)

// Portal names
const (
	PORTAL_BUS_NAME = "org.freedesktop.portal.Desktop"
	DESKTOP_PATH    = "/org/freedesktop/portal/desktop"
	REQUEST_PATH    = DESKTOP_PATH + "/request"
	SESSION_PATH    = DESKTOP_PATH + "/session"

	PORTAL_PREFIX      = "org.freedesktop.portal."
	IMPL_PORTAL_PREFIX = "org.freedesktop.impl.portal."
	HOST_PORTAL_PREFIX = "org.freedesktop.host.portal."

	REQUEST_IFACE      = PORTAL_PREFIX + "Request"
	SESSION_IFACE      = PORTAL_PREFIX + "Session"
	IMPL_REQUEST_IFACE = IMPL_PORTAL_PREFIX + "Request"
	IMPL_SESSION_IFACE = IMPL_PORTAL_PREFIX + "Session"

	PERMISSION_STORE_BUS_NAME = IMPL_PORTAL_PREFIX + "PermissionStore"
	PERMISSION_STORE_PATH     = "/org/freedesktop/impl/portal/PermissionStore"
	PERMISSION_STORE_IFACE    = IMPL_PORTAL_PREFIX + "PermissionStore"

	DOCUMENTS_BUS_NAME = "org.freedesktop.portal.Documents"
	DOCUMENTS_PATH     = "/org/freedesktop/portal/documents"
	DOCUMENTS_IFACE    = PORTAL_PREFIX + "Documents"

	LOCKDOWN_IMPL_IFACE = IMPL_PORTAL_PREFIX + "Lockdown"
	ACCESS_IMPL_IFACE   = IMPL_PORTAL_PREFIX + "Access"
)

// Portal error names
const (
	ERROR_PREFIX = PORTAL_PREFIX + "Error."

	ERROR_FAILED            = ERROR_PREFIX + "Failed"
	ERROR_INVALID_ARGUMENT  = ERROR_PREFIX + "InvalidArgument"
	ERROR_NOT_FOUND         = ERROR_PREFIX + "NotFound"
	ERROR_EXISTS            = ERROR_PREFIX + "Exists"
	ERROR_NOT_ALLOWED       = ERROR_PREFIX + "NotAllowed"
	ERROR_CANCELLED         = ERROR_PREFIX + "Cancelled"
	ERROR_WINDOW_DESTROYED  = ERROR_PREFIX + "WindowDestroyed"
	ERROR_DISABLED          = ERROR_PREFIX + "Disabled"
	ERROR_ACCESS_DENIED     = "org.freedesktop.DBus.Error.AccessDenied"
	ERROR_UNKNOWN_METHOD    = "org.freedesktop.DBus.Error.UnknownMethod"
	ERROR_PROPERTY_READONLY = "org.freedesktop.DBus.Error.PropertyReadOnly"
	ERROR_UNKNOWN_PROPERTY  = "org.freedesktop.DBus.Error.UnknownProperty"
)

// Response codes carried by Request.Response
const (
	RESPONSE_SUCCESS   uint32 = 0
	RESPONSE_CANCELLED uint32 = 1
	RESPONSE_OTHER     uint32 = 2
)
