/*
Package companion is the state core of an AI chat companion.

All state lives in a single AppState owned by a Store. The only way to change
it is to dispatch a batch of intents, which a pure reducer applies as one
transaction. Each committed change is classified as permanent (conversations
or settings changed) or ephemeral (UI only), and published to observers after
the commit.

Asking a question appends an ongoing entry and starts a side effect: a
moderation check, then a text or image generation. The outcome always comes
back as a FinalizeEntry intent, so the entry never stays ongoing.

Permanent changes are saved as one blob under a fixed key by the persistence
observer, which never blocks dispatching.

# Usage

	app, err := companion.New(ctx,
		companion.WithAPIKey(os.Getenv("OPENAI_API_KEY")),
		companion.WithBlobStore(file.New(".companion/state")),
	)
	if err != nil {
		log.Fatal(err)
	}
	defer app.Close(context.Background())

	sub, err := app.Submit(ctx, domain.EffectText, "What is a monad?")
	if err != nil {
		log.Fatal(err)
	}
	<-sub.Done

	entry, _ := app.State().FindEntry(sub.EntryID)
	fmt.Println(entry.Response.Text)
*/
package companion
