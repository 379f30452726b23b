// Package notify delivers alarm session outcomes to the outside world.
//
// Every type here implements lifecycle.Notifier. MQTTPublisher announces
// outcomes on a broker, History appends finished sessions to the session
// repository, Log writes them to the structured log and Multi fans one
// outcome out to several notifiers in order. Fake records outcomes for tests.
package notify
