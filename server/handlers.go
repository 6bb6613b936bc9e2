package server

import (
	"errors"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"

	"pressfeed/db"
	"pressfeed/feeds"
	"pressfeed/index"
	"pressfeed/models"
)

type handlers struct {
	db        *db.DB
	index     *index.Index
	assembler *feeds.Assembler
	events    chan interface{}
}

// statusFromError maps the core error taxonomy onto HTTP statuses. Typed
// failures are never coerced to empty results.
func statusFromError(err error) int {
	var validation *models.ValidationError
	switch {
	case errors.As(err, &validation):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, models.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, models.ErrEmptySubscription),
		errors.Is(err, models.ErrInvalidCursor):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

func fail(c *fiber.Ctx, err error) error {
	status := statusFromError(err)
	if status == fiber.StatusInternalServerError {
		log.WithFields(log.Fields{
			"route":     c.Route().Path,
			"requestId": c.Locals("requestId"),
			"error":     err,
		}).Error("Request failed")
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

// Publishers

func (h *handlers) listPublishers(c *fiber.Ctx) error {
	publishers, err := h.db.ListPublishers(c.Context())
	if err != nil {
		return fail(c, err)
	}
	if publishers == nil {
		publishers = []models.Publisher{}
	}
	return c.JSON(publishers)
}

func (h *handlers) createPublisher(c *fiber.Ctx) error {
	var publisher models.Publisher
	if err := c.BodyParser(&publisher); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	if publisher.Name == "" {
		return fail(c, models.NewValidationError("name", publisher.Name))
	}

	id, err := h.db.CreatePublisher(c.Context(), publisher)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": id})
}

func (h *handlers) publisherPosts(c *fiber.Ctx) error {
	publisherId, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid publisher id"})
	}
	posts := slices.Collect(h.index.PostsBy(publisherId))
	if posts == nil {
		posts = []int64{}
	}
	return c.JSON(fiber.Map{"posts": posts})
}

// Interests

func (h *handlers) listInterests(c *fiber.Ctx) error {
	interests, err := h.db.ListInterests(c.Context())
	if err != nil {
		return fail(c, err)
	}
	if interests == nil {
		interests = []models.Interest{}
	}
	return c.JSON(interests)
}

func (h *handlers) createInterest(c *fiber.Ctx) error {
	var interest models.Interest
	if err := c.BodyParser(&interest); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	if interest.Name == "" {
		return fail(c, models.NewValidationError("name", interest.Name))
	}

	id, err := h.db.CreateInterest(c.Context(), interest)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": id})
}

func (h *handlers) interestPosts(c *fiber.Ctx) error {
	posts := slices.Collect(h.index.CandidatesFor(c.Params("name")))
	if posts == nil {
		posts = []int64{}
	}
	return c.JSON(fiber.Map{"posts": posts})
}

// Posts

func (h *handlers) createPost(c *fiber.Ctx) error {
	var post models.Post
	if err := c.BodyParser(&post); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	if post.CreatedAt == 0 {
		post.CreatedAt = time.Now().Unix()
	}

	id, err := h.db.CreatePost(c.Context(), post)
	if err != nil {
		return fail(c, err)
	}
	post.Id = id

	if err := h.index.Index(post); err != nil {
		// Keep the database and the index consistent: a post that cannot be
		// indexed is not published.
		if deleteErr := h.db.DeletePost(c.Context(), id); deleteErr != nil {
			log.WithFields(log.Fields{"post": id, "error": deleteErr}).Error("Error rolling back post")
		}
		return fail(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": id})
}

func (h *handlers) getPost(c *fiber.Ctx) error {
	postId, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid post id"})
	}

	post, err := h.db.GetPost(c.Context(), postId)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(post)
}

func (h *handlers) retractPost(c *fiber.Ctx) error {
	postId, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid post id"})
	}

	if err := h.index.Retract(postId); err != nil {
		return fail(c, err)
	}
	h.events <- models.DeletePostEvent{PostId: postId}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *handlers) likePost(c *fiber.Ctx) error {
	postId, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid post id"})
	}

	// Delta defaults to a single like when the body is empty
	var body struct {
		Delta int64 `json:"delta"`
	}
	if err := c.BodyParser(&body); err != nil || body.Delta == 0 {
		body.Delta = 1
	}

	if err := h.index.Boost(postId, body.Delta); err != nil {
		return fail(c, err)
	}
	h.events <- models.LikePostEvent{PostId: postId, Delta: body.Delta}

	return c.SendStatus(fiber.StatusNoContent)
}

// Feed

func (h *handlers) feed(c *fiber.Ctx) error {
	names := lo.Filter(strings.Split(c.Query("interests", ""), ","), func(name string, _ int) bool {
		return strings.TrimSpace(name) != ""
	})
	cursor := c.Query("cursor", "")
	limit, err := strconv.ParseInt(c.Query("limit", "20"), 0, 32)
	if err != nil || limit < 1 || limit > feeds.MaxPageSize {
		limit = feeds.DefaultPageSize
	}

	subscription, err := h.subscription(c, names)
	if err != nil {
		return fail(c, err)
	}

	log.WithFields(log.Fields{
		"interests": names,
		"cursor":    cursor,
		"limit":     limit,
	}).Debug("Assembling feed with parameters")

	response, err := h.assembler.Assemble(c.Context(), subscription, cursor, int(limit))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(response)
}

// subscription resolves the requested interest names against the stored
// affinity weights. Interests without a stored weight default to 1.0.
func (h *handlers) subscription(c *fiber.Ctx, names []string) (models.Subscription, error) {
	subscription := models.NewSubscription(names)
	if len(subscription) == 0 {
		return subscription, nil
	}

	interests, err := h.db.ListInterests(c.Context())
	if err != nil {
		return nil, err
	}
	for _, interest := range interests {
		if _, ok := subscription[interest.Name]; ok {
			subscription[interest.Name] = interest.Weight
		}
	}
	return subscription, nil
}
