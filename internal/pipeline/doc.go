// Package pipeline runs the post-generation stages of an itinerary request.
//
// Stages run one after another in Order, after the orchestrator produced a
// successful outcome and before the response is sent. Each stage can allow,
// mutate, or deny the itinerary.
//
// # Failure policy
//
// Every stage is configured with an OnError action:
//   - allow: the error is logged and the pipeline continues with the
//     itinerary as it was before the stage (thumbnails)
//   - deny: the error stops the pipeline and is returned to the caller
//     (persistence)
//
// A stage that returns ActionDeny always stops the pipeline with a
// *DeniedError, regardless of OnError.
//
// # Progress
//
// A stage with a Message emits a progress event before it runs, so a
// streaming caller sees "Adding images" and "Saving itinerary" between the
// last orchestrator event and the terminal one.
package pipeline
