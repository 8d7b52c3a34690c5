package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/belfioreasia/swemls-aki-prediction/internal/models"
)

// MemoryPatientsRepo 患者仓库的内存实现（DB 未就绪时的联测与单元测试用）
type MemoryPatientsRepo struct {
	mu       sync.RWMutex
	patients map[int]models.Patient
}

// NewMemoryPatientsRepo 创建内存患者仓库
func NewMemoryPatientsRepo() *MemoryPatientsRepo {
	return &MemoryPatientsRepo{patients: map[int]models.Patient{}}
}

var _ PatientsRepository = (*MemoryPatientsRepo)(nil)

func (r *MemoryPatientsRepo) UpsertPatient(_ context.Context, patient models.Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patients[patient.MRN] = patient
	return nil
}

func (r *MemoryPatientsRepo) UpdateStatus(_ context.Context, mrn int, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if patient, ok := r.patients[mrn]; ok {
		patient.AdmissionStatus = status
		r.patients[mrn] = patient
	}
	return nil
}

func (r *MemoryPatientsRepo) GetPatient(_ context.Context, mrn int) (*models.Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	patient, ok := r.patients[mrn]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &patient, nil
}

func (r *MemoryPatientsRepo) Exists(_ context.Context, mrn int) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.patients[mrn]
	return ok, nil
}

// MemoryBloodTestsRepo 血检仓库的内存实现
type MemoryBloodTestsRepo struct {
	mu    sync.RWMutex
	tests map[int][]models.BloodTest
}

// NewMemoryBloodTestsRepo 创建内存血检仓库
func NewMemoryBloodTestsRepo() *MemoryBloodTestsRepo {
	return &MemoryBloodTestsRepo{tests: map[int][]models.BloodTest{}}
}

var _ BloodTestsRepository = (*MemoryBloodTestsRepo)(nil)

func (r *MemoryBloodTestsRepo) InsertTest(_ context.Context, test models.BloodTest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tests[test.MRN] = append(r.tests[test.MRN], test)
	return nil
}

func (r *MemoryBloodTestsRepo) GetTestsByMRN(_ context.Context, mrn int) ([]models.BloodTest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tests := make([]models.BloodTest, len(r.tests[mrn]))
	copy(tests, r.tests[mrn])
	// 与 postgres 实现一致：时间从新到旧
	sort.SliceStable(tests, func(i, j int) bool {
		return tests[i].TestTime.After(tests[j].TestTime)
	})
	return tests, nil
}

func (r *MemoryBloodTestsRepo) HasHistorical(_ context.Context) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, tests := range r.tests {
		for _, test := range tests {
			if test.Source == models.TestSourceHistorical {
				return true, nil
			}
		}
	}
	return false, nil
}
