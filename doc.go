// Package replydesk is an inbound reply pipeline for chat-platform bots.
//
// A webhook call is verified against the tenant's channel secret, each of
// its events is persisted as pending and queued, and the call is
// acknowledged at once. Workers claim events with a compare-and-set, load
// the tenant's credentials from the vault, classify risk, retrieve
// knowledge and decide how to answer:
//
//   - AUTO sends the reply immediately
//   - SUGGEST and ASK store a draft for a person to approve
//   - HANDOFF flags the conversation for a person
//
// Every claimed event ends done or failed. Events the queue never
// delivered are picked up by a periodic drain.
//
// Quick start:
//
//	v, _ := vault.New(vault.Config{Keys: map[int]string{1: key}, Current: 1})
//	d, err := replydesk.New(
//	    replydesk.WithStore(memory.New()),
//	    replydesk.WithVault(v),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	d.Start(ctx)
//	defer d.Stop(ctx)
//
//	d.Credentials().Save(ctx, "tenant_1", credential.Secrets{
//	    BotID:         "U123",
//	    ChannelSecret: secret,
//	    AccessToken:   token,
//	})
//	res, err := d.Dispatch(ctx, "tenant_1", body, r.Header.Get("X-Line-Signature"))
package replydesk
