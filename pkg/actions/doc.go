// Package actions carries the typed notifications emitted by provisioning
// workflows.
//
// A workflow records its actions in an Outbox, which is returned with the
// workflow result and forwards every action to the shared Publisher. The
// Publisher delivers actions to subscribers in emission order: the SQLite
// action log (JournalSubscriber), an optional NATS forwarder publishing on
// opsdeck.actions.<type>, and any console listener.
//
// Example:
//
//	pub := actions.NewPublisher(actions.DefaultConfig(), logger, metrics)
//	pub.Subscribe(actions.JournalSubscriber(journal, logger), engine.ActionFilter{})
//	defer pub.Shutdown(ctx)
//
//	outbox := actions.NewOutbox("provision_database", pub)
//	outbox.Success("Database provisioned")
package actions
