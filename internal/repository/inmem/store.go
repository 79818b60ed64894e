// Package inmem 进程内存储，用于测试和 database.driver=memory 的本地运行
package inmem

import (
	"context"
	"edu_progress_backend/internal/model"
	"edu_progress_backend/internal/service"
	"edu_progress_backend/internal/util"
	"sort"
	"sync"
	"time"
)

type Store struct {
	mu sync.RWMutex
	pk uint
	// 非空时所有操作返回该错误，用于模拟存储故障
	failure error

	users         map[uint]*model.User
	courses       map[uint]*model.Course
	enrollments   map[uint]map[uint]bool // courseID -> userID
	lessons       map[uint]*model.Lesson
	quizzes       map[uint]*model.Quiz
	quizDone      map[uint]map[uint]bool // userID -> quizID
	assignments   map[uint]*model.Assignment
	submitted     map[uint]map[uint]bool // userID -> assignmentID
	progress      map[[2]uint]*model.LessonProgress
	notifications []model.Notification
}

var (
	_ service.LessonStore       = (*Store)(nil)
	_ service.ProgressStore     = (*Store)(nil)
	_ service.CourseStore       = (*Store)(nil)
	_ service.RosterStore       = (*Store)(nil)
	_ service.NotificationStore = (*Store)(nil)
	_ service.ContentStore      = (*Store)(nil)
)

func NewStore() *Store {
	return &Store{
		users:       make(map[uint]*model.User),
		courses:     make(map[uint]*model.Course),
		enrollments: make(map[uint]map[uint]bool),
		lessons:     make(map[uint]*model.Lesson),
		quizzes:     make(map[uint]*model.Quiz),
		quizDone:    make(map[uint]map[uint]bool),
		assignments: make(map[uint]*model.Assignment),
		submitted:   make(map[uint]map[uint]bool),
		progress:    make(map[[2]uint]*model.LessonProgress),
	}
}

// SetFailure 传 nil 恢复正常
func (s *Store) SetFailure(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failure = err
}

func (s *Store) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.failure
}

func (s *Store) nextID() uint {
	s.pk++
	return s.pk
}

// assign 为空时分配主键，调用方指定的主键会推高计数器
func (s *Store) assign(id *uint) {
	if *id == 0 {
		*id = s.nextID()
	} else if *id > s.pk {
		s.pk = *id
	}
}

func cloneLesson(l *model.Lesson) *model.Lesson {
	c := *l
	c.Exercises = make([]model.Exercise, len(l.Exercises))
	for i, ex := range l.Exercises {
		ex.Questions = append([]model.Question(nil), ex.Questions...)
		c.Exercises[i] = ex
	}
	return &c
}

func cloneProgress(p *model.LessonProgress) *model.LessonProgress {
	c := *p
	c.Items = append([]model.LessonProgressItem(nil), p.Items...)
	return &c
}

func addTo(m map[uint]map[uint]bool, outer, inner uint) {
	if m[outer] == nil {
		m[outer] = make(map[uint]bool)
	}
	m[outer][inner] = true
}

// 以下是测试和本地运行的数据准备方法

func (s *Store) AddUser(u model.User) *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assign(&u.ID)
	if u.Role == "" {
		u.Role = model.Student
	}
	stored := u
	s.users[u.ID] = &stored
	return &u
}

func (s *Store) AddCourse(c model.Course) *model.Course {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assign(&c.ID)
	stored := c
	s.courses[c.ID] = &stored
	return &c
}

func (s *Store) Enroll(userID, courseID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	addTo(s.enrollments, courseID, userID)
}

func (s *Store) AddLesson(l model.Lesson) *model.Lesson {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertLesson(&l)
	return cloneLesson(&l)
}

func (s *Store) insertLesson(l *model.Lesson) {
	s.assign(&l.ID)
	for i := range l.Exercises {
		ex := &l.Exercises[i]
		s.assign(&ex.ID)
		ex.LessonID = l.ID
		for j := range ex.Questions {
			q := &ex.Questions[j]
			s.assign(&q.ID)
			q.ExerciseID = ex.ID
		}
	}
	s.lessons[l.ID] = cloneLesson(l)
}

// RemoveLesson 模拟课程管理端删除课时，已有进度保留
func (s *Store) RemoveLesson(lessonID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.lessons, lessonID)
}

func (s *Store) AddQuiz(q model.Quiz) *model.Quiz {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assign(&q.ID)
	stored := q
	s.quizzes[q.ID] = &stored
	return &q
}

func (s *Store) CompleteQuiz(userID, quizID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	addTo(s.quizDone, userID, quizID)
}

func (s *Store) AddAssignment(a model.Assignment) *model.Assignment {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assign(&a.ID)
	stored := a
	s.assignments[a.ID] = &stored
	return &a
}

func (s *Store) SubmitAssignment(userID, assignmentID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	addTo(s.submitted, userID, assignmentID)
}

// PutProgress 直接写入进度记录，用于构造不一致的数据
func (s *Store) PutProgress(p model.LessonProgress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assign(&p.ID)
	s.progress[[2]uint{p.UserID, p.LessonID}] = cloneProgress(&p)
}

// LessonStore

func (s *Store) FindLesson(ctx context.Context, courseID, lessonID uint) (*model.Lesson, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	l, ok := s.lessons[lessonID]
	if !ok || l.CourseID != courseID {
		return nil, util.ErrLessonNotFound
	}
	return cloneLesson(l), nil
}

func (s *Store) ListLessons(ctx context.Context, courseID uint) ([]model.Lesson, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	var out []model.Lesson
	for _, l := range s.lessons {
		if l.CourseID == courseID {
			out = append(out, *cloneLesson(l))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// ProgressStore

func (s *Store) FindProgress(ctx context.Context, userID, lessonID uint) (*model.LessonProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	p, ok := s.progress[[2]uint{userID, lessonID}]
	if !ok {
		return nil, nil
	}
	return cloneProgress(p), nil
}

func (s *Store) ListCourseProgress(ctx context.Context, userID, courseID uint) ([]model.LessonProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	var out []model.LessonProgress
	for key, p := range s.progress {
		if key[0] == userID && p.CourseID == courseID {
			out = append(out, *cloneProgress(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LessonID < out[j].LessonID })
	return out, nil
}

// UpdateProgress 在副本上执行修改，成功后整体替换，失败则丢弃
func (s *Store) UpdateProgress(ctx context.Context, userID, courseID, lessonID uint, fn service.ProgressMutation) (*model.LessonProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	key := [2]uint{userID, lessonID}
	var p *model.LessonProgress
	if cur, ok := s.progress[key]; ok {
		p = cloneProgress(cur)
	} else {
		now := time.Now()
		p = &model.LessonProgress{
			ID:        s.pk + 1,
			UserID:    userID,
			CourseID:  courseID,
			LessonID:  lessonID,
			Status:    model.StatusNotStarted,
			CreatedAt: now,
		}
	}

	known := len(p.Items)
	if err := fn(p); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if _, ok := s.progress[key]; !ok {
		s.nextID()
	}
	seen := make(map[model.ItemID]bool, len(p.Items))
	items := p.Items[:0:0]
	for i, item := range p.Items {
		if seen[item.ItemID()] {
			continue
		}
		seen[item.ItemID()] = true
		if i >= known {
			item.ID = s.nextID()
			item.ProgressID = p.ID
		}
		items = append(items, item)
	}
	p.Items = items
	p.UpdatedAt = time.Now()

	s.progress[key] = p
	return cloneProgress(p), nil
}

// CourseStore / RosterStore

func (s *Store) FindCourse(ctx context.Context, courseID uint) (*model.Course, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	c, ok := s.courses[courseID]
	if !ok {
		return nil, util.ErrCourseNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *Store) FindUser(ctx context.Context, userID uint) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	u, ok := s.users[userID]
	if !ok {
		return nil, util.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func sortedIDs(set map[uint]bool, keep func(id uint) bool) []uint {
	ids := make([]uint, 0, len(set))
	for id := range set {
		if keep == nil || keep(id) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (s *Store) ListQuizIDs(ctx context.Context, courseID uint) ([]uint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	all := make(map[uint]bool)
	for id, q := range s.quizzes {
		if q.CourseID == courseID {
			all[id] = true
		}
	}
	return sortedIDs(all, nil), nil
}

func (s *Store) ListCompletedQuizIDs(ctx context.Context, userID, courseID uint) ([]uint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	return sortedIDs(s.quizDone[userID], func(id uint) bool {
		q, ok := s.quizzes[id]
		return ok && q.CourseID == courseID
	}), nil
}

func (s *Store) ListAssignmentIDs(ctx context.Context, courseID uint) ([]uint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	all := make(map[uint]bool)
	for id, a := range s.assignments {
		if a.CourseID == courseID {
			all[id] = true
		}
	}
	return sortedIDs(all, nil), nil
}

func (s *Store) ListSubmittedAssignmentIDs(ctx context.Context, userID, courseID uint) ([]uint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	return sortedIDs(s.submitted[userID], func(id uint) bool {
		a, ok := s.assignments[id]
		return ok && a.CourseID == courseID
	}), nil
}

func (s *Store) ListEnrolledCourseIDs(ctx context.Context, userID uint) ([]uint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	var ids []uint
	for courseID, members := range s.enrollments {
		if members[userID] {
			ids = append(ids, courseID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *Store) ListEnrolledStudents(ctx context.Context, courseID uint) ([]model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	var out []model.User
	for _, id := range sortedIDs(s.enrollments[courseID], nil) {
		u, ok := s.users[id]
		if !ok || u.Role != model.Student || u.Disabled {
			continue
		}
		out = append(out, *u)
	}
	return out, nil
}

// NotificationStore

func (s *Store) CreateNotification(ctx context.Context, n *model.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	n.ID = s.nextID()
	n.CreatedAt = time.Now()
	s.notifications = append(s.notifications, *n)
	return nil
}

func (s *Store) ListNotifications(ctx context.Context, userID uint, limit int) ([]model.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	var out []model.Notification
	for i := len(s.notifications) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if s.notifications[i].UserID == userID {
			out = append(out, s.notifications[i])
		}
	}
	return out, nil
}

// ContentStore

func (s *Store) CreateLesson(ctx context.Context, lesson *model.Lesson) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	s.insertLesson(lesson)
	return nil
}

func (s *Store) CreateQuiz(ctx context.Context, quiz *model.Quiz) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	quiz.ID = s.nextID()
	q := *quiz
	s.quizzes[q.ID] = &q
	return nil
}

func (s *Store) CreateAssignment(ctx context.Context, assignment *model.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	assignment.ID = s.nextID()
	a := *assignment
	s.assignments[a.ID] = &a
	return nil
}
