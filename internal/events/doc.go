// Package events carries session lifecycle notifications between the
// training service and the components that react to them: the stats cache
// drops stale entries and the repair handler schedules ledger repairs.
//
// Emitters dispatch synchronously, in registration order. A handler error
// never prevents later handlers from seeing the event.
package events
