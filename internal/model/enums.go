package model

type UserType string

const (
	UserTypeOwner UserType = "owner"
	UserTypeAgent UserType = "agent"
)

type SelectionType string

const (
	SelectionTypeAll      SelectionType = "all"
	SelectionTypeSpecific SelectionType = "specific"
)

type NotificationType string

const (
	NotificationInboxConnected    NotificationType = "inbox_connected"
	NotificationInboxDisconnected NotificationType = "inbox_disconnected"
	NotificationSwitchFailed      NotificationType = "switch_failed"
)

type NotificationLevel string

const (
	NotificationLevelSuccess NotificationLevel = "success"
	NotificationLevelWarning NotificationLevel = "warning"
	NotificationLevelError   NotificationLevel = "error"
)
